// Package packages is the Package DAO of spec §4.D: a sha1-content-
// addressed store of downloaded package files, a reference-counted
// cluster↔package link table, and a per-(bundle,file) override table
// consulted by the bundle reconciler (internal/bundle).
package packages

import "time"

// Provider identifies where a package's metadata originates. Local
// covers synthetic rows created during reconciliation for files with
// no known provider match.
type Provider string

const (
	ProviderModrinth   Provider = "modrinth"
	ProviderCurseForge Provider = "curseforge"
	ProviderLocal      Provider = "local"
)

// Kind mirrors spec's Managed/Local package distinction.
type Kind string

const (
	KindManaged Kind = "managed"
	KindLocal   Kind = "local"
)

// Record is one row of the package store, keyed by the sha1 of its
// file content (or, for directory packs, the synthetic
// "dir:<folder>" hash per spec §4.F).
type Record struct {
	Hash        string `gorm:"primaryKey;size:40"`
	Kind        Kind   `gorm:"size:16;not null"`
	Provider    Provider `gorm:"size:16;not null"`
	ProjectID   string `gorm:"size:128;index"`
	VersionID   string `gorm:"size:128"`
	Filename    string `gorm:"size:255;not null"`
	StoragePath string `gorm:"size:1024;not null"`
	SizeBytes   int64
	CreatedAt   time.Time
}

// TableName pins the gorm table name so renames of Record don't
// silently migrate data away.
func (Record) TableName() string { return "packages" }

// Link is a reference-counted edge between a cluster and a package,
// per spec §4.D: link() increments by inserting a row; unlink()
// deletes it but never the underlying package file; delete() removes
// the package file+row only once no Link rows remain.
type Link struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ClusterID  string `gorm:"size:36;not null;index:idx_link_cluster"`
	Hash       string `gorm:"size:40;not null;index:idx_link_cluster"`
	BundleName string `gorm:"size:255"`
	FileID     string `gorm:"size:255"`
	LinkedAt   time.Time
}

func (Link) TableName() string { return "cluster_packages" }

// OverrideState is the reconciler's per-(bundle,file) sticky user
// decision, per spec §4.H.
type OverrideState string

const (
	OverrideDisabled OverrideState = "disabled"
	OverrideRemoved  OverrideState = "removed"
)

// Override records a user decision that must survive bundle updates:
// a file the user disabled or explicitly removed from a given bundle.
type Override struct {
	ID         uint          `gorm:"primaryKey;autoIncrement"`
	ClusterID  string        `gorm:"size:36;not null;index:idx_override_cluster"`
	BundleName string        `gorm:"size:255;not null"`
	FileID     string        `gorm:"size:255;not null"`
	State      OverrideState `gorm:"size:16;not null"`
}

func (Override) TableName() string { return "cluster_overrides" }
