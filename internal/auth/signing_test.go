package auth

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"math/big"
	"testing"
	"time"
)

// canonicalForTest rebuilds the canonical byte layout signRequest signs,
// so the test can verify the signature independently of signRequest's
// own internals.
func canonicalForTest(method, path, authToken string, body []byte, ts time.Time) []byte {
	ticks := unixToWindowsTicks(ts)
	var tickBuf [8]byte
	binary.BigEndian.PutUint64(tickBuf[:], ticks)
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], uint32(signatureVersion))

	out := append([]byte{}, verBuf[:]...)
	out = append(out, tickBuf[:]...)
	out = append(out, method...)
	out = append(out, 0)
	out = append(out, path...)
	out = append(out, 0)
	out = append(out, authToken...)
	out = append(out, 0)
	out = append(out, body...)
	out = append(out, 0)
	return out
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func TestGenerateAndLoadKeyPairRoundTrip(t *testing.T) {
	kp, err := generateDeviceKey()
	if err != nil {
		t.Fatalf("generateDeviceKey: %v", err)
	}
	if kp.ID == "" {
		t.Error("generateDeviceKey produced an empty device key id")
	}

	loaded, err := loadKeyPair(kp.DeviceKey)
	if err != nil {
		t.Fatalf("loadKeyPair: %v", err)
	}
	if loaded.priv.X.Cmp(kp.priv.X) != 0 || loaded.priv.Y.Cmp(kp.priv.Y) != 0 {
		t.Error("loadKeyPair did not reproduce the original public point")
	}
}

func TestSignRequestLayoutAndVerification(t *testing.T) {
	kp, err := generateDeviceKey()
	if err != nil {
		t.Fatalf("generateDeviceKey: %v", err)
	}

	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sig, err := kp.signRequest("POST", "/device/authenticate", "auth-token", []byte(`{"k":"v"}`), ts)
	if err != nil {
		t.Fatalf("signRequest: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	if len(raw) != 4+8+32+32 {
		t.Fatalf("signature length = %d, want %d", len(raw), 76)
	}

	version := binary.BigEndian.Uint32(raw[0:4])
	if version != uint32(signatureVersion) {
		t.Errorf("signature version = %d, want %d", version, signatureVersion)
	}

	ticks := binary.BigEndian.Uint64(raw[4:12])
	if ticks != unixToWindowsTicks(ts) {
		t.Errorf("signature ticks = %d, want %d", ticks, unixToWindowsTicks(ts))
	}

	r := new(big.Int).SetBytes(raw[12:44])
	s := new(big.Int).SetBytes(raw[44:76])

	canonical := canonicalForTest("POST", "/device/authenticate", "auth-token", []byte(`{"k":"v"}`), ts)
	digest := sha256Sum(canonical)
	if !ecdsa.Verify(&kp.priv.PublicKey, digest, r, s) {
		t.Error("ecdsa.Verify failed against the signed canonical layout")
	}
}

func TestUnixToWindowsTicksIsMonotonic(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)
	if unixToWindowsTicks(t2) <= unixToWindowsTicks(t1) {
		t.Error("unixToWindowsTicks should increase with time")
	}
}

func TestLeftPad32(t *testing.T) {
	got := leftPad32([]byte{1, 2, 3})
	if len(got) != 32 {
		t.Fatalf("leftPad32 length = %d, want 32", len(got))
	}
	for i := 0; i < 29; i++ {
		if got[i] != 0 {
			t.Fatalf("leftPad32 leading byte %d = %d, want 0", i, got[i])
		}
	}
	if got[29] != 1 || got[30] != 2 || got[31] != 3 {
		t.Errorf("leftPad32 tail = %v, want [1 2 3]", got[29:])
	}

	full := make([]byte, 40)
	full[0] = 0xAB
	if gotFull := leftPad32(full); len(gotFull) != 32 || gotFull[0] != full[8] {
		t.Errorf("leftPad32 on an oversized input should keep the trailing 32 bytes")
	}
}
