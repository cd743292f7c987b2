package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"time"

	"github.com/google/uuid"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// signatureVersion is the "version=1" of the Signature header layout
// spec §4.J/§3 describes.
const signatureVersion int32 = 1

// generateDeviceKey creates a fresh ECDSA P-256 keypair and wraps it in
// the DeviceKey/keyPair the signer needs, per spec §3.
func generateDeviceKey() (*keyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, onelauncher.AuthStep("device_key", err)
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, onelauncher.AuthStep("device_key", err)
	}
	pemBlock := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})

	return &keyPair{
		priv: priv,
		DeviceKey: DeviceKey{
			ID:         uuid.NewString(),
			PrivateKey: string(pemBlock),
			X:          base64.RawURLEncoding.EncodeToString(priv.X.Bytes()),
			Y:          base64.RawURLEncoding.EncodeToString(priv.Y.Bytes()),
		},
	}, nil
}

// keyPair pairs the persisted DeviceKey with its parsed private key
// and the current device token string, so the signer never has to
// re-decode PEM on every request.
type keyPair struct {
	DeviceKey
	priv  *ecdsa.PrivateKey
	token string
}

func loadKeyPair(dk DeviceKey) (*keyPair, error) {
	block, _ := pem.Decode([]byte(dk.PrivateKey))
	if block == nil {
		return nil, onelauncher.New(onelauncher.KindSerde, "malformed device key PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindSerde, err, "parse device key")
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, onelauncher.New(onelauncher.KindSerde, "device key is not ECDSA")
	}
	return &keyPair{priv: priv, DeviceKey: dk}, nil
}

// signRequest builds the Signature header value of spec §4.J: a
// {version=1, method, path, auth_token_bytes, body_bytes} canonical
// layout (fields joined by null bytes), ECDSA-signed, then re-encoded
// as {version_i32, unix_ticks_u64, r_bytes, s_bytes} in base64.
//
// ts is the timestamp to embed. Every caller in this package passes the
// current local time; the Date header captured on apiResponse is not
// fed back into later signatures.
func (k *keyPair) signRequest(method, path, authToken string, body []byte, ts time.Time) (string, error) {
	ticks := unixToWindowsTicks(ts)

	var tickBuf [8]byte
	binary.BigEndian.PutUint64(tickBuf[:], ticks)

	canonical := make([]byte, 0, 4+8+len(method)+1+len(path)+1+len(authToken)+1+len(body)+1)
	var verBuf [4]byte
	binary.BigEndian.PutUint32(verBuf[:], uint32(signatureVersion))
	canonical = append(canonical, verBuf[:]...)
	canonical = append(canonical, tickBuf[:]...)
	canonical = append(canonical, method...)
	canonical = append(canonical, 0)
	canonical = append(canonical, path...)
	canonical = append(canonical, 0)
	if authToken != "" {
		canonical = append(canonical, authToken...)
	}
	canonical = append(canonical, 0)
	canonical = append(canonical, body...)
	canonical = append(canonical, 0)

	digest := sha256.Sum256(canonical)
	r, s, err := ecdsa.Sign(rand.Reader, k.priv, digest[:])
	if err != nil {
		return "", onelauncher.AuthStep("sign_request", err)
	}

	out := make([]byte, 0, 4+8+32+32)
	out = append(out, verBuf[:]...)
	out = append(out, tickBuf[:]...)
	out = append(out, leftPad32(r.Bytes())...)
	out = append(out, leftPad32(s.Bytes())...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// windowsEpochOffsetTicks is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01), which
// the XBL signature scheme's timestamp field uses.
const windowsEpochOffsetTicks = 116444736000000000

func unixToWindowsTicks(t time.Time) uint64 {
	return uint64(t.UnixNano()/100) + windowsEpochOffsetTicks
}
