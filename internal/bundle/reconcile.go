package bundle

import (
	"sort"

	"github.com/Polyfrost/onelauncher-core/internal/packages"
)

// UpdateAction replaces a tracked package with a newer version the
// same bundle now lists under the same key.
type UpdateAction struct {
	BundleName string
	Key        string
	OldHash    string
	NewFile    ManifestFile
}

// RemovalAction unlinks a tracked package whose key no longer belongs
// to any subscribed bundle.
type RemovalAction struct {
	BundleName string
	Hash       string
	Key        string
}

// AdditionAction links a bundle file not yet represented on disk.
type AdditionAction struct {
	BundleName string
	File       ManifestFile
}

// Plan is the check pass's output, per spec §4.H.
type Plan struct {
	Removals  []RemovalAction
	Updates   []UpdateAction
	Additions []AdditionAction
}

func (p Plan) Empty() bool {
	return len(p.Removals) == 0 && len(p.Updates) == 0 && len(p.Additions) == 0
}

// InstalledKeys partitions a cluster's installed package rows into
// managed keys ("m:<provider>:<project_id>") and external hashes
// ("e:<sha1>"), per spec §4.H's key derivation.
func InstalledKeys(installed []packages.Record) map[string]bool {
	keys := make(map[string]bool, len(installed))
	for _, rec := range installed {
		if rec.Provider == packages.ProviderLocal {
			keys["e:"+rec.Hash] = true
		} else {
			keys["m:"+string(rec.Provider)+":"+rec.ProjectID] = true
		}
	}
	return keys
}

// InferSubscriptions computes the full subscribed-bundle set: every
// explicitly tracked bundle name, plus any bundle inferred from a
// unique installed managed key; external ("e:") keys never infer, per
// spec §4.H.
func InferSubscriptions(manifests map[string]*Manifest, trackedBundleNames map[string]bool, installedKeys map[string]bool) map[string]bool {
	subscribed := make(map[string]bool, len(trackedBundleNames))
	for name := range trackedBundleNames {
		if _, ok := manifests[name]; ok {
			subscribed[name] = true
		}
	}

	keyBundleCount := make(map[string]int)
	for _, m := range manifests {
		seen := make(map[string]bool)
		for _, f := range m.VisibleFiles() {
			k := f.Key()
			if !seen[k] {
				keyBundleCount[k]++
				seen[k] = true
			}
		}
	}

	for name, m := range manifests {
		if subscribed[name] {
			continue
		}
		for _, f := range m.VisibleFiles() {
			if f.Managed == nil {
				continue
			}
			k := f.Key()
			if installedKeys[k] && keyBundleCount[k] == 1 {
				subscribed[name] = true
				break
			}
		}
	}
	return subscribed
}

// overrideKey identifies a (bundle_name, file_id) override row.
type overrideKey struct {
	bundleName string
	fileID     string
}

func overrideMap(overrides []packages.Override) map[overrideKey]packages.OverrideState {
	m := make(map[overrideKey]packages.OverrideState, len(overrides))
	for _, o := range overrides {
		m[overrideKey{o.BundleName, o.FileID}] = o.State
	}
	return m
}

// Check computes the plan for one cluster, per spec §4.H's check
// pass. manifests is the full loaded set scoped to the cluster's
// (mc_version, loader); tracked is its current cluster_packages link
// rows; getRecord resolves a link's current package row.
func Check(manifests map[string]*Manifest, tracked []packages.Link, overrides []packages.Override, installed []packages.Record, getRecord func(hash string) (*packages.Record, bool)) Plan {
	trackedBundleNames := make(map[string]bool)
	for _, l := range tracked {
		if l.BundleName != "" {
			trackedBundleNames[l.BundleName] = true
		}
	}

	installedKeys := InstalledKeys(installed)
	subscribed := InferSubscriptions(manifests, trackedBundleNames, installedKeys)
	ov := overrideMap(overrides)

	var plan Plan

	for _, link := range tracked {
		if link.BundleName == "" {
			continue
		}
		originalBundle, loaded := manifests[link.BundleName]
		if !loaded {
			// Bundle metadata currently unavailable: never remove.
			continue
		}
		key := link.FileID
		if file, found := originalBundle.FileByKey(key); found {
			rec, ok := getRecord(link.Hash)
			if !ok {
				continue
			}
			if fileVersionID(file) == "" || fileVersionID(file) == rec.VersionID {
				continue
			}
			if ov[overrideKey{link.BundleName, key}] == packages.OverrideRemoved {
				continue
			}
			plan.Updates = append(plan.Updates, UpdateAction{
				BundleName: link.BundleName,
				Key:        key,
				OldHash:    link.Hash,
				NewFile:    file,
			})
			continue
		}
		// Key no longer listed by the originally tracked bundle: keep
		// the package untouched if another subscribed bundle still
		// provides it (bundles compose).
		if keyProvidedByAnySubscribed(key, subscribed, manifests, link.BundleName) {
			continue
		}
		plan.Removals = append(plan.Removals, RemovalAction{
			BundleName: link.BundleName,
			Hash:       link.Hash,
			Key:        key,
		})
	}

	planned := make(map[string]bool, len(installedKeys))
	for k := range installedKeys {
		planned[k] = true
	}

	names := make([]string, 0, len(subscribed))
	for name := range subscribed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := manifests[name]
		for _, f := range m.VisibleFiles() {
			if !f.Enabled {
				continue
			}
			key := f.Key()
			if planned[key] {
				continue
			}
			if ov[overrideKey{name, key}] == packages.OverrideRemoved {
				continue
			}
			plan.Additions = append(plan.Additions, AdditionAction{BundleName: name, File: f})
			planned[key] = true
		}
	}

	return plan
}

func keyProvidedByAnySubscribed(key string, subscribed map[string]bool, manifests map[string]*Manifest, excludeBundle string) bool {
	for name := range subscribed {
		if name == excludeBundle {
			continue
		}
		m := manifests[name]
		if _, found := m.FileByKey(key); found {
			return true
		}
	}
	return false
}

func fileVersionID(f ManifestFile) string {
	if f.Managed != nil {
		return f.Managed.VersionID
	}
	return f.External.Sha1
}
