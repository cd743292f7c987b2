package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polyfrost/onelauncher-core/internal/packages"
)

func managedManifest(name string, keys ...string) *Manifest {
	m := &Manifest{Name: name}
	for _, k := range keys {
		// key is "m:modrinth:<project_id>"
		projectID := k[len("m:modrinth:"):]
		m.Files = append(m.Files, ManifestFile{
			Path:    "mods/" + projectID + ".jar",
			Enabled: true,
			Managed: &ManagedFile{Provider: packages.ProviderModrinth, ProjectID: projectID, VersionID: "v1", Filename: projectID + ".jar", Sha1: "hash-" + projectID},
		})
	}
	return m
}

func TestInferSubscriptions_SharedKeyDoesNotInfer(t *testing.T) {
	qol := managedManifest("QoL", "m:modrinth:overflowparticles")
	skyblock := managedManifest("SkyBlock", "m:modrinth:overflowparticles")
	manifests := map[string]*Manifest{"QoL": qol, "SkyBlock": skyblock}
	installedKeys := map[string]bool{"m:modrinth:overflowparticles": true}

	subscribed := InferSubscriptions(manifests, map[string]bool{}, installedKeys)
	assert.Empty(t, subscribed, "a key shared by two bundles must not infer a subscription")
}

func TestInferSubscriptions_UniqueKeyInfers(t *testing.T) {
	qol := managedManifest("QoL", "m:modrinth:overflowparticles", "m:modrinth:autotip")
	skyblock := managedManifest("SkyBlock", "m:modrinth:overflowparticles")
	manifests := map[string]*Manifest{"QoL": qol, "SkyBlock": skyblock}
	installedKeys := map[string]bool{"m:modrinth:overflowparticles": true, "m:modrinth:autotip": true}

	subscribed := InferSubscriptions(manifests, map[string]bool{}, installedKeys)
	assert.Equal(t, map[string]bool{"QoL": true}, subscribed)
}

func TestCheck_AdditionsComposeAcrossBundles(t *testing.T) {
	a := managedManifest("A", "m:modrinth:shared", "m:modrinth:only-a")
	b := managedManifest("B", "m:modrinth:shared")
	manifests := map[string]*Manifest{"A": a, "B": b}

	tracked := []packages.Link{{BundleName: "A"}, {BundleName: "B"}} // explicit subscriptions to A and B
	plan := Check(manifests, tracked, nil, nil, func(string) (*packages.Record, bool) { return nil, false })

	keys := make(map[string]bool)
	for _, add := range plan.Additions {
		keys[add.File.Key()] = true
	}
	assert.True(t, keys["m:modrinth:shared"])
	assert.True(t, keys["m:modrinth:only-a"])
	assert.False(t, keys["m:modrinth:B-only"])

	var sharedCount int
	for _, add := range plan.Additions {
		if add.File.Key() == "m:modrinth:shared" {
			sharedCount++
		}
	}
	assert.Equal(t, 1, sharedCount, "a key listed by two subscribed bundles must produce exactly one addition")
}

func TestCheck_UpdateDetectsVersionChange(t *testing.T) {
	newBundle := managedManifest("Pack", "m:modrinth:jei")
	newBundle.Files[0].Managed.VersionID = "v2"
	manifests := map[string]*Manifest{"Pack": newBundle}

	tracked := []packages.Link{{BundleName: "Pack", Hash: "old-hash", FileID: "m:modrinth:jei"}}
	rec := &packages.Record{Hash: "old-hash", VersionID: "v1"}

	plan := Check(manifests, tracked, nil, nil, func(hash string) (*packages.Record, bool) {
		require.Equal(t, "old-hash", hash)
		return rec, true
	})

	require.Len(t, plan.Updates, 1)
	assert.Equal(t, "Pack", plan.Updates[0].BundleName)
	assert.Equal(t, "v2", plan.Updates[0].NewFile.Managed.VersionID)
	assert.Empty(t, plan.Removals)
}

func TestCheck_UpdateSkippedWhenOverrideRemoved(t *testing.T) {
	newBundle := managedManifest("Pack", "m:modrinth:jei")
	newBundle.Files[0].Managed.VersionID = "v2"
	manifests := map[string]*Manifest{"Pack": newBundle}

	tracked := []packages.Link{{BundleName: "Pack", Hash: "old-hash", FileID: "m:modrinth:jei"}}
	overrides := []packages.Override{{ClusterID: "c1", BundleName: "Pack", FileID: "m:modrinth:jei", State: packages.OverrideRemoved}}
	rec := &packages.Record{Hash: "old-hash", VersionID: "v1"}

	plan := Check(manifests, tracked, overrides, nil, func(string) (*packages.Record, bool) { return rec, true })
	assert.Empty(t, plan.Updates)
}

func TestCheck_RemovalWhenKeyDropsFromAllSubscribedBundles(t *testing.T) {
	empty := &Manifest{Name: "Pack"} // the bundle no longer lists the file at all
	manifests := map[string]*Manifest{"Pack": empty}

	tracked := []packages.Link{{BundleName: "Pack", Hash: "old-hash", FileID: "m:modrinth:jei"}}
	plan := Check(manifests, tracked, nil, nil, func(string) (*packages.Record, bool) {
		return &packages.Record{Hash: "old-hash", VersionID: "v1"}, true
	})

	require.Len(t, plan.Removals, 1)
	assert.Equal(t, "old-hash", plan.Removals[0].Hash)
}

func TestCheck_RemovalSkippedWhenBundleMetadataUnavailable(t *testing.T) {
	manifests := map[string]*Manifest{} // "Pack" isn't in the loaded set
	tracked := []packages.Link{{BundleName: "Pack", Hash: "old-hash", FileID: "m:modrinth:jei"}}

	plan := Check(manifests, tracked, nil, nil, func(string) (*packages.Record, bool) {
		t.Fatal("getRecord should not be called when bundle metadata is unavailable")
		return nil, false
	})
	assert.Empty(t, plan.Removals)
	assert.Empty(t, plan.Updates)
}

func TestCheck_KeptWhenAnotherSubscribedBundleStillProvidesKey(t *testing.T) {
	packA := &Manifest{Name: "A"} // no longer lists the key
	packB := managedManifest("B", "m:modrinth:jei")
	manifests := map[string]*Manifest{"A": packA, "B": packB}

	tracked := []packages.Link{
		{BundleName: "A", Hash: "old-hash", FileID: "m:modrinth:jei"},
		{BundleName: "B", Hash: "old-hash", FileID: "m:modrinth:jei"},
	}
	plan := Check(manifests, tracked, nil, nil, func(string) (*packages.Record, bool) {
		return &packages.Record{Hash: "old-hash", VersionID: "v1"}, true
	})
	assert.Empty(t, plan.Removals, "bundles compose: B still provides the key so nothing should be removed")
}
