package process

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Store is processor.json, per spec §5: "read only at startup; written
// on every insert/remove."
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, doc: make(document)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, path)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, path)
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	payload, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindSerde, err, "marshal processor.json")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, dir)
	}
	tmp, err := os.CreateTemp(dir, ".processor-*.json")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	return os.Rename(tmpPath, s.path)
}

// Insert adds or replaces a record and persists the store.
func (s *Store) Insert(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc[r.UUID] = r
	return s.persistLocked()
}

// Remove deletes a record and persists the store.
func (s *Store) Remove(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc, uuid)
	return s.persistLocked()
}

// Bump increments a record's Generation and persists it, but only if
// the record's on-disk generation still equals expectedGeneration —
// otherwise another launcher instance already rescued it first, and
// ok is returned false so the caller can discard its stale attempt.
func (s *Store) Bump(uuid string, expectedGeneration int) (rec Record, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.doc[uuid]
	if !exists || current.Generation != expectedGeneration {
		return Record{}, false, nil
	}
	current.Generation++
	s.doc[uuid] = current
	if err := s.persistLocked(); err != nil {
		return Record{}, false, err
	}
	return current, true, nil
}

// All returns every persisted record, for the rescue pass at startup.
func (s *Store) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.doc))
	for _, r := range s.doc {
		out = append(out, r)
	}
	return out
}
