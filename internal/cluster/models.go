// Package cluster is the cluster engine of spec §4.F: create/edit/
// remove/list/repair/sync for a user's named Minecraft instances, a
// DB-backed record store with an fsnotify-invalidated in-memory cache
// in front of it. The database is authoritative; cluster.json is an
// export mirror only, never a second source of truth.
package cluster

import (
	"encoding/json"
	"time"

	"github.com/Polyfrost/onelauncher-core/internal/metadata"
)

// Stage mirrors spec's cluster lifecycle state.
type Stage string

const (
	StageNotInstalled Stage = "not_installed"
	StageInstalling   Stage = "installing"
	StageInstalled    Stage = "installed"
)

// Record is the persisted row for one cluster, per spec §4.F.
type Record struct {
	ID              string `gorm:"primaryKey;size:36"`
	Name            string `gorm:"size:255;not null"`
	FolderName      string `gorm:"size:255;not null;uniqueIndex"`
	MCVersion       string `gorm:"size:32;not null"`
	Loader          metadata.Loader `gorm:"size:32;not null"`
	LoaderVersion   string `gorm:"size:128"`
	Stage           Stage  `gorm:"size:16;not null"`
	IconPath        string `gorm:"size:1024"`
	JavaOverride    string `gorm:"size:1024"` // optional custom Java path
	MemoryMinMB     int
	MemoryMaxMB     int
	ExtraJVMArgs    string `gorm:"size:4096"` // space-separated, per spec §3
	ExtraEnvJSON    string `gorm:"size:4096"` // JSON-encoded map[string]string
	WindowWidth     int
	WindowHeight    int
	Fullscreen      bool
	PreHook         string `gorm:"size:1024"`
	PostHook        string `gorm:"size:1024"`
	WrapperCommand  string `gorm:"size:1024"`
	RecentlyPlayed  int64 // seconds, reset into OverallPlayed on exit
	OverallPlayed   int64 // seconds, cumulative
	LastPlayedAt    *time.Time

	// Origin modpack link, per spec §3 (optional).
	OriginPackageHash string `gorm:"size:40"`
	OriginVersionID   string `gorm:"size:128"`
	OriginLocked      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtraEnv decodes ExtraEnvJSON, returning nil if empty or malformed.
func (r *Record) ExtraEnv() map[string]string {
	if r.ExtraEnvJSON == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(r.ExtraEnvJSON), &out); err != nil {
		return nil
	}
	return out
}

// SetExtraEnv encodes env into ExtraEnvJSON.
func (r *Record) SetExtraEnv(env map[string]string) {
	if len(env) == 0 {
		r.ExtraEnvJSON = ""
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	r.ExtraEnvJSON = string(b)
}

func (Record) TableName() string { return "clusters" }

// Cluster is the in-memory, API-facing view of a Record.
type Cluster struct {
	Record
}
