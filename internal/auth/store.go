package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Store is the credential store of spec §4.J / §6: authentication.json,
// serialised by a single in-process lock and written atomically
// (temp file + rename), per spec §5's "Credentials file" resource
// policy.
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// OpenStore loads path if it exists, or starts from an empty document.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Users: make(map[string]Credentials), Tokens: make(map[string]SavedDeviceToken)}}
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
	if s.doc.Users == nil {
		s.doc.Users = make(map[string]Credentials)
	}
	if s.doc.Tokens == nil {
		s.doc.Tokens = make(map[string]SavedDeviceToken)
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	payload, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return onelauncher.Wrap(onelauncher.KindSerde, err, "marshal authentication.json")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, dir)
	}
	tmp, err := os.CreateTemp(dir, ".authentication-*.json")
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
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return onelauncher.Wrap(onelauncher.KindIO, err, tmpPath)
	}
	return os.Rename(tmpPath, s.path)
}

// Put inserts or replaces a credential and persists the store.
func (s *Store) Put(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Users[c.UUID] = c
	if s.doc.DefaultUser == "" {
		s.doc.DefaultUser = c.UUID
	}
	return s.persistLocked()
}

// Get returns the credential for uuid.
func (s *Store) Get(uuid string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.doc.Users[uuid]
	if !ok {
		return Credentials{}, onelauncher.NotFound("user", uuid)
	}
	return c, nil
}

// List returns every stored credential.
func (s *Store) List() []Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Credentials, 0, len(s.doc.Users))
	for _, c := range s.doc.Users {
		out = append(out, c)
	}
	return out
}

// Remove deletes a credential and, if it was the default user, clears
// the default.
func (s *Store) Remove(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Users, uuid)
	if s.doc.DefaultUser == uuid {
		s.doc.DefaultUser = ""
	}
	return s.persistLocked()
}

// SetDefaultUser selects the account used for launch, per spec §6's
// set_default_user call.
func (s *Store) SetDefaultUser(uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Users[uuid]; !ok {
		return onelauncher.NotFound("user", uuid)
	}
	s.doc.DefaultUser = uuid
	return s.persistLocked()
}

// DefaultUser returns the credential selected for launch.
func (s *Store) DefaultUser() (Credentials, error) {
	s.mu.Lock()
	uuid := s.doc.DefaultUser
	s.mu.Unlock()
	if uuid == "" {
		return Credentials{}, onelauncher.NotFound("user", "default")
	}
	return s.Get(uuid)
}

// MachineID returns the stable identifier device tokens are cached
// under: the OS-reported machine id when one is available (so every
// authentication.json on the same box converges on it), otherwise a
// random id generated once and persisted in this store.
func (s *Store) MachineID() (string, error) {
	if id := platformMachineID(); id != "" {
		return id, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.GeneratedMachineID != "" {
		return s.doc.GeneratedMachineID, nil
	}
	s.doc.GeneratedMachineID = uuid.NewString()
	if err := s.persistLocked(); err != nil {
		return "", err
	}
	return s.doc.GeneratedMachineID, nil
}

// DeviceToken returns the device key/token cached for machineID, or
// ok=false if none has been generated yet.
func (s *Store) DeviceToken(machineID string) (SavedDeviceToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.doc.Tokens[machineID]
	return t, ok
}

// PutDeviceToken caches the device key/token pair under machineID.
func (s *Store) PutDeviceToken(machineID string, t SavedDeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Tokens[machineID] = t
	return s.persistLocked()
}

// ClearDeviceToken drops the cached device key/token for machineID,
// forcing regeneration on the next signed request.
func (s *Store) ClearDeviceToken(machineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Tokens, machineID)
	return s.persistLocked()
}
