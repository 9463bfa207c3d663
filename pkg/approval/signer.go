package approval

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

const signingDomain = "helm:approval:v1"

// Signature scheme prefixes.
const (
	SchemeDigest  = "sha256"
	SchemeEd25519 = "ed25519"
	SchemeHMAC    = "hmac-sha256"
)

// Signer produces the opaque signature stored on an approval. The signature
// binds the acting identity to the decision timestamp.
type Signer interface {
	Sign(actor string, at time.Time) (string, error)
	Verify(actor string, at time.Time, signature string) bool
}

// SigningPayload returns the domain-separated bytes that every scheme signs.
// Actor names are NFC-normalized so visually identical names sign identically.
func SigningPayload(actor string, at time.Time) []byte {
	return []byte(signingDomain + "|" + norm.NFC.String(actor) + "|" + at.UTC().Format(time.RFC3339Nano))
}

// DigestSigner is the default keyless scheme: a SHA-256 digest of the payload.
// It proves integrity of the (actor, timestamp) pair, not identity.
type DigestSigner struct{}

func (DigestSigner) Sign(actor string, at time.Time) (string, error) {
	sum := sha256.Sum256(SigningPayload(actor, at))
	return SchemeDigest + ":" + hex.EncodeToString(sum[:]), nil
}

func (s DigestSigner) Verify(actor string, at time.Time, signature string) bool {
	want, _ := s.Sign(actor, at)
	return hmac.Equal([]byte(want), []byte(signature))
}

// Ed25519Signer signs with an organization key. Signatures have the form
// "ed25519:<keyID>:<hex>".
type Ed25519Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	keyID string
}

// NewEd25519Signer wraps priv. keyID is embedded in every signature.
func NewEd25519Signer(priv ed25519.PrivateKey, keyID string) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("approval: invalid ed25519 private key length %d", len(priv))
	}
	if keyID == "" || strings.Contains(keyID, ":") {
		return nil, errors.New("approval: key id must be non-empty and must not contain ':'")
	}
	return &Ed25519Signer{
		priv:  priv,
		pub:   priv.Public().(ed25519.PublicKey),
		keyID: keyID,
	}, nil
}

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.pub }

func (s *Ed25519Signer) Sign(actor string, at time.Time) (string, error) {
	sig := ed25519.Sign(s.priv, SigningPayload(actor, at))
	return SchemeEd25519 + ":" + s.keyID + ":" + hex.EncodeToString(sig), nil
}

func (s *Ed25519Signer) Verify(actor string, at time.Time, signature string) bool {
	return VerifyEd25519(s.pub, actor, at, signature)
}

// VerifyEd25519 checks an Ed25519 approval signature against pub without
// access to the private key.
func VerifyEd25519(pub ed25519.PublicKey, actor string, at time.Time, signature string) bool {
	parts := strings.SplitN(signature, ":", 3)
	if len(parts) != 3 || parts[0] != SchemeEd25519 {
		return false
	}
	sig, err := hex.DecodeString(parts[2])
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, SigningPayload(actor, at), sig)
}

// KeyedSigner computes HMAC-SHA256 signatures with a per-organization key
// derived from a master secret via HKDF-SHA256.
type KeyedSigner struct {
	key []byte
}

// NewKeyedSigner derives the organization's signing key from master.
func NewKeyedSigner(master []byte, organizationID string) (*KeyedSigner, error) {
	if len(master) < 32 {
		return nil, errors.New("approval: master secret must be at least 32 bytes")
	}
	if organizationID == "" {
		return nil, errors.New("approval: organization id must not be empty")
	}
	r := hkdf.New(sha256.New, master, []byte(signingDomain), []byte("org:"+organizationID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("approval: hkdf derivation failed: %w", err)
	}
	return &KeyedSigner{key: key}, nil
}

func (s *KeyedSigner) Sign(actor string, at time.Time) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(SigningPayload(actor, at))
	return SchemeHMAC + ":" + hex.EncodeToString(mac.Sum(nil)), nil
}

func (s *KeyedSigner) Verify(actor string, at time.Time, signature string) bool {
	want, _ := s.Sign(actor, at)
	return hmac.Equal([]byte(want), []byte(signature))
}

// SignerFactory returns the signer for an organization's approvals.
type SignerFactory func(organizationID string) (Signer, error)

// StaticSigners uses signer for every organization. A nil signer selects
// DigestSigner.
func StaticSigners(signer Signer) SignerFactory {
	if signer == nil {
		signer = DigestSigner{}
	}
	return func(string) (Signer, error) { return signer, nil }
}

// KeyedSigners derives one KeyedSigner per organization from master and
// caches it.
func KeyedSigners(master []byte) (SignerFactory, error) {
	if len(master) < 32 {
		return nil, errors.New("approval: master secret must be at least 32 bytes")
	}
	master = append([]byte(nil), master...)
	var (
		mu    sync.Mutex
		cache = map[string]*KeyedSigner{}
	)
	return func(organizationID string) (Signer, error) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := cache[organizationID]; ok {
			return s, nil
		}
		s, err := NewKeyedSigner(master, organizationID)
		if err != nil {
			return nil, err
		}
		cache[organizationID] = s
		return s, nil
	}, nil
}
