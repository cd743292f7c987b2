package process

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreInsertRemoveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	rec := Record{
		UUID:        "abc-123",
		PID:         4242,
		StartTime:   time.Now().UTC().Truncate(time.Second),
		ExeName:     "java",
		ExePath:     "/usr/bin/java",
		ClusterPath: "/clusters/test",
		ClusterID:   "cluster-1",
	}
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen OpenStore: %v", err)
	}
	all := reopened.All()
	if len(all) != 1 {
		t.Fatalf("All() after reopen = %d records, want 1", len(all))
	}
	if all[0].UUID != rec.UUID || all[0].PID != rec.PID {
		t.Errorf("reopened record = %+v, want %+v", all[0], rec)
	}

	if err := store.Remove(rec.UUID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := store.All(); len(got) != 0 {
		t.Errorf("All() after Remove = %d records, want 0", len(got))
	}
}

func TestStoreBumpDetectsStaleGeneration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	rec := Record{UUID: "abc-123", PID: 4242}
	if err := store.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	bumped, ok, err := store.Bump(rec.UUID, 0)
	if err != nil {
		t.Fatalf("Bump: %v", err)
	}
	if !ok {
		t.Fatalf("Bump with current generation should succeed")
	}
	if bumped.Generation != 1 {
		t.Errorf("Generation after first Bump = %d, want 1", bumped.Generation)
	}

	if _, ok, err := store.Bump(rec.UUID, 0); err != nil {
		t.Fatalf("Bump: %v", err)
	} else if ok {
		t.Errorf("Bump against a stale generation should fail")
	}

	if _, ok, err := store.Bump(rec.UUID, 1); err != nil {
		t.Fatalf("Bump: %v", err)
	} else if !ok {
		t.Errorf("Bump against the current generation should succeed")
	}
}

func TestOpenStoreMissingFileIsEmpty(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("OpenStore on missing file: %v", err)
	}
	if got := store.All(); len(got) != 0 {
		t.Errorf("All() on fresh store = %d records, want 0", len(got))
	}
}
