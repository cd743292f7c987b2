package packages

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "packages.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func writeTestPackageFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.jar")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test package: %v", err)
	}
	return path
}

func TestStore_InsertAndGetByHash(t *testing.T) {
	store := newTestStore(t)
	path := writeTestPackageFile(t, "mod contents")

	rec := &Record{
		Hash:        "abc123",
		Kind:        KindManaged,
		Provider:    ProviderModrinth,
		ProjectID:   "proj1",
		VersionID:   "ver1",
		Filename:    "mod.jar",
		StoragePath: path,
		SizeBytes:   12,
	}
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetByHash("abc123")
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if got.Filename != "mod.jar" {
		t.Errorf("got.Filename = %q, want mod.jar", got.Filename)
	}
}

func TestStore_GetByHashNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetByHash("missing"); err == nil {
		t.Fatal("GetByHash() on missing hash expected an error")
	}
}

func TestStore_LinkUnlinkDelete(t *testing.T) {
	store := newTestStore(t)
	path := writeTestPackageFile(t, "mod contents")

	rec := &Record{
		Hash:        "def456",
		Kind:        KindManaged,
		Provider:    ProviderModrinth,
		ProjectID:   "proj2",
		Filename:    "mod2.jar",
		StoragePath: path,
	}
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	destPath := filepath.Join(t.TempDir(), "mods", "mod2.jar")
	if err := store.Link("cluster-1", "def456", "bundleA", "file1", destPath); err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if _, err := os.Stat(destPath); err != nil {
		t.Fatalf("expected hard link at %s: %v", destPath, err)
	}

	linked, err := store.IsLinked("cluster-1", "def456")
	if err != nil || !linked {
		t.Fatalf("IsLinked() = %v, %v, want true, nil", linked, err)
	}

	// Delete must fail while linked.
	if err := store.Delete("def456"); err == nil {
		t.Fatal("Delete() on a linked package expected an error")
	}

	if err := store.Unlink("cluster-1", "def456", destPath); err != nil {
		t.Fatalf("Unlink() error = %v", err)
	}
	if _, err := os.Stat(destPath); !os.IsNotExist(err) {
		t.Fatalf("expected hard link removed, stat err = %v", err)
	}
	// Package-store file must survive Unlink.
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("package file must survive Unlink: %v", err)
	}

	if err := store.Delete("def456"); err != nil {
		t.Fatalf("Delete() after unlink error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected package file removed after Delete, stat err = %v", err)
	}
}

func TestStore_OverrideRoundtrip(t *testing.T) {
	store := newTestStore(t)

	if _, ok := store.GetOverride("c1", "bundleA", "file1"); ok {
		t.Fatal("GetOverride() on unset override expected ok=false")
	}

	if err := store.SetOverride("c1", "bundleA", "file1", OverrideDisabled); err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
	state, ok := store.GetOverride("c1", "bundleA", "file1")
	if !ok || state != OverrideDisabled {
		t.Fatalf("GetOverride() = %v, %v, want Disabled, true", state, ok)
	}

	if err := store.SetOverride("c1", "bundleA", "file1", OverrideRemoved); err != nil {
		t.Fatalf("SetOverride() update error = %v", err)
	}
	state, ok = store.GetOverride("c1", "bundleA", "file1")
	if !ok || state != OverrideRemoved {
		t.Fatalf("GetOverride() after update = %v, %v, want Removed, true", state, ok)
	}
}
