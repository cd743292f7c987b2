// Package bundle is the declarative modpack reconciler of spec §4.H:
// parses mrpack/polymrpack archives into a canonical Manifest, infers
// which bundles a cluster is subscribed to, diffs the cluster's
// tracked packages against the subscribed set, and applies the
// resulting additions/updates/removals through one parse -> plan ->
// apply pipeline.
package bundle

import "github.com/Polyfrost/onelauncher-core/internal/packages"

// ManagedFile is a bundle file resolved against a provider's catalogue
// (provider + project + specific version), per spec §3's Bundle model.
type ManagedFile struct {
	Provider    packages.Provider
	ProjectID   string
	VersionID   string
	Filename    string
	DownloadURL string
	Sha1        string
}

// ExternalFile is a bundle file with no provider identity, addressed
// only by content hash and a direct URL.
type ExternalFile struct {
	Name string
	URL  string
	Sha1 string
	Size int64
}

// ManifestFile is one entry of a bundle's file list. Exactly one of
// Managed or External is set.
type ManifestFile struct {
	Path     string // relative to the cluster root, e.g. "mods/jei.jar"
	Enabled  bool
	Hidden   bool
	Managed  *ManagedFile
	External *ExternalFile
}

// Key derives the identity spec §4.H diffs on: "m:<provider>:<project_id>"
// for managed files, "e:<sha1>" for external ones.
func (f ManifestFile) Key() string {
	if f.Managed != nil {
		return "m:" + string(f.Managed.Provider) + ":" + f.Managed.ProjectID
	}
	return "e:" + f.External.Sha1
}

// Hash returns the file's current content hash, used to detect
// whether an update actually resolved to new bytes.
func (f ManifestFile) Hash() string {
	if f.Managed != nil {
		return f.Managed.Sha1
	}
	return f.External.Sha1
}

// Manifest is a parsed bundle: name, version, target (mc_version,
// loader) tuple, its file list, and the override-directory names to
// extract (in precedence order — polymrpack's client-overrides/ wins
// over overrides/, both are kept since no-overwrite extraction lets
// the first writer stick).
type Manifest struct {
	Name          string
	Version       string
	MCVersion     string
	Loader        string
	LoaderVersion string
	Files         []ManifestFile
	OverridesDirs []string
	SourcePath    string // archive path this manifest was parsed from
}

// VisibleFiles returns the non-hidden files, which is all that
// subscription inference and addition planning ever consider.
func (m *Manifest) VisibleFiles() []ManifestFile {
	out := make([]ManifestFile, 0, len(m.Files))
	for _, f := range m.Files {
		if !f.Hidden {
			out = append(out, f)
		}
	}
	return out
}

// FileByKey finds a file by its derived key, or reports false.
func (m *Manifest) FileByKey(key string) (ManifestFile, bool) {
	for _, f := range m.Files {
		if f.Key() == key {
			return f, true
		}
	}
	return ManifestFile{}, false
}
