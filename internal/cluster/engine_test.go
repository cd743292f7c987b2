package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Polyfrost/onelauncher-core/internal/fetch"
	"github.com/Polyfrost/onelauncher-core/internal/ingress"
	"github.com/Polyfrost/onelauncher-core/internal/metadata"
	"github.com/Polyfrost/onelauncher-core/internal/storage"
)

type fakeInstaller struct {
	fail bool
}

func (f *fakeInstaller) Install(ctx context.Context, c *Cluster, force bool, sub ingress.SubIngress) error {
	if f.fail {
		return os.ErrInvalid
	}
	return nil
}

func newTestEngine(t *testing.T, installer Installer) *Engine {
	t.Helper()
	root := t.TempDir()
	dirs := storage.NewAt(root)

	store, err := OpenStore(filepath.Join(root, "clusters.db"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	metaCache := metadata.New(fetch.New(fetch.DefaultConfig()), filepath.Join(root, "metadata.json"))

	engine, err := New(dirs, store, metaCache, installer, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestEngine_CreateVanillaCluster(t *testing.T) {
	engine := newTestEngine(t, &fakeInstaller{})

	c, err := engine.CreateCluster(context.Background(), "My Pack", "1.20.1", metadata.LoaderVanilla, "", "")
	if err != nil {
		t.Fatalf("CreateCluster() error = %v", err)
	}
	if c.Stage != StageInstalled {
		t.Fatalf("Stage = %v, want Installed", c.Stage)
	}

	got, err := engine.GetByID(c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "My Pack" {
		t.Fatalf("Name = %q, want %q", got.Name, "My Pack")
	}
}

func TestEngine_CreateRollsBackOnInstallFailure(t *testing.T) {
	engine := newTestEngine(t, &fakeInstaller{fail: true})

	_, err := engine.CreateCluster(context.Background(), "Broken Pack", "1.20.1", metadata.LoaderVanilla, "", "")
	if err == nil {
		t.Fatal("CreateCluster() expected an error from a failing installer")
	}

	if got := engine.List(); len(got) != 0 {
		t.Fatalf("List() = %d clusters, want 0 after rollback", len(got))
	}
}

func TestEngine_EditPersists(t *testing.T) {
	engine := newTestEngine(t, &fakeInstaller{})

	c, err := engine.CreateCluster(context.Background(), "Editable", "1.20.1", metadata.LoaderVanilla, "", "")
	if err != nil {
		t.Fatalf("CreateCluster() error = %v", err)
	}

	if err := engine.Edit(c.ID, func(c *Cluster) error {
		c.Name = "Renamed"
		return nil
	}); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	got, err := engine.GetByID(c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("Name = %q, want Renamed", got.Name)
	}
}

func TestEngine_Remove(t *testing.T) {
	engine := newTestEngine(t, &fakeInstaller{})

	c, err := engine.CreateCluster(context.Background(), "ToRemove", "1.20.1", metadata.LoaderVanilla, "", "")
	if err != nil {
		t.Fatalf("CreateCluster() error = %v", err)
	}

	if err := engine.Remove(c.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := engine.GetByID(c.ID); err == nil {
		t.Fatal("GetByID() after Remove() expected an error")
	}
}
