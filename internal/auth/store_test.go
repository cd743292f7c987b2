package auth

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStorePutGetDefaultUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	cred := Credentials{UUID: "u1", Username: "Notch", AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Put(cred); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.DefaultUser()
	if err != nil {
		t.Fatalf("DefaultUser: %v", err)
	}
	if got.UUID != cred.UUID {
		t.Errorf("DefaultUser() = %+v, want %+v", got, cred)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen OpenStore: %v", err)
	}
	if _, err := reopened.Get("u1"); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestSetDefaultUserUnknownUUIDDoesNotDeadlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	if err := store.SetDefaultUser("missing"); err == nil {
		t.Fatal("SetDefaultUser(missing) = nil error, want NotFound")
	}

	// A prior bug double-unlocked the mutex on this path; confirm the
	// store is still usable afterwards.
	if err := store.Put(Credentials{UUID: "u2"}); err != nil {
		t.Fatalf("Put after failed SetDefaultUser: %v", err)
	}
}

func TestRemoveClearsDefaultUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := store.Put(Credentials{UUID: "u1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Remove("u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.DefaultUser(); err == nil {
		t.Error("DefaultUser() after removing the only user should error")
	}
}

func TestDeviceTokenCaching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	const machineID = "test-machine"
	if _, ok := store.DeviceToken(machineID); ok {
		t.Fatal("DeviceToken on a fresh store should report ok=false")
	}

	saved := SavedDeviceToken{Token: "devtok", NotAfter: time.Now().Add(time.Hour)}
	if err := store.PutDeviceToken(machineID, saved); err != nil {
		t.Fatalf("PutDeviceToken: %v", err)
	}
	got, ok := store.DeviceToken(machineID)
	if !ok || got.Token != saved.Token {
		t.Errorf("DeviceToken() = %+v, %v; want %+v, true", got, ok, saved)
	}

	if err := store.ClearDeviceToken(machineID); err != nil {
		t.Fatalf("ClearDeviceToken: %v", err)
	}
	if _, ok := store.DeviceToken(machineID); ok {
		t.Error("DeviceToken after ClearDeviceToken should report ok=false")
	}
}

func TestDeviceTokenIsolatedPerMachineID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	a := SavedDeviceToken{Token: "tok-a", NotAfter: time.Now().Add(time.Hour)}
	b := SavedDeviceToken{Token: "tok-b", NotAfter: time.Now().Add(time.Hour)}
	if err := store.PutDeviceToken("machine-a", a); err != nil {
		t.Fatalf("PutDeviceToken: %v", err)
	}
	if err := store.PutDeviceToken("machine-b", b); err != nil {
		t.Fatalf("PutDeviceToken: %v", err)
	}
	gotA, ok := store.DeviceToken("machine-a")
	if !ok || gotA.Token != a.Token {
		t.Errorf("DeviceToken(machine-a) = %+v, %v; want %+v, true", gotA, ok, a)
	}
	gotB, ok := store.DeviceToken("machine-b")
	if !ok || gotB.Token != b.Token {
		t.Errorf("DeviceToken(machine-b) = %+v, %v; want %+v, true", gotB, ok, b)
	}
}

func TestStoreMachineIDIsStableAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authentication.json")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	first, err := store.MachineID()
	if err != nil {
		t.Fatalf("MachineID: %v", err)
	}
	if first == "" {
		t.Fatal("MachineID() returned an empty id")
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen OpenStore: %v", err)
	}
	second, err := reopened.MachineID()
	if err != nil {
		t.Fatalf("MachineID: %v", err)
	}
	if first != second {
		t.Errorf("MachineID() across reopen = %q, want %q", second, first)
	}
}
