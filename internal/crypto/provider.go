// Package crypto implements the pluggable KEM + signature provider from
// spec.md C2 §4.2: a KEM+signature interface so a native post-quantum
// backend and a non-quantum-safe fallback can share one call surface
// (spec.md: "the contract is pluggable algorithms behind a KEM+signature
// interface").
package crypto

import (
	"crypto/subtle"
	"errors"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

// errFallbackNotProductionGrade is returned by callers that gate on
// production-grade post-quantum security and observe ModeFallback.
var errFallbackNotProductionGrade = errors.New("fallback crypto provider is not quantum-safe; refused for production-grade use")

// Mode reports whether a Provider is backed by a native post-quantum
// algorithm or by the fallback.
type Mode int

const (
	// ModeNativePQ backs KEM and signature operations with Kyber768 and
	// Dilithium3 (github.com/cloudflare/circl).
	ModeNativePQ Mode = iota
	// ModeFallback backs operations with X25519 and Ed25519. It is
	// documented as non-quantum-safe; tests that assert production-grade
	// status must refuse a Provider reporting this mode (spec.md §4.2).
	ModeFallback
)

func (m Mode) String() string {
	if m == ModeNativePQ {
		return "native-pq"
	}
	return "fallback"
}

// KEM is the key-encapsulation-mechanism capability set.
type KEM interface {
	GenerateKeyPair() (pub, priv []byte, err error)
	Encapsulate(pub []byte) (sharedSecret, ciphertext []byte, err error)
	Decapsulate(priv, ciphertext []byte) (sharedSecret []byte, err error)
}

// SignatureScheme is the signing capability set.
type SignatureScheme interface {
	GenerateKeyPair() (pub, priv []byte, err error)
	Sign(message, signingKey []byte) (signature []byte, err error)
	Verify(message, signature, verifyKey []byte) (bool, error)
}

// Provider composes a KEM and a SignatureScheme and reports its Mode, per
// spec.md §4.2 ("Providers report their mode").
type Provider struct {
	KEM
	SignatureScheme
	mode Mode
}

// Mode reports whether this Provider is the native post-quantum backend or
// the fallback.
func (p *Provider) Mode() Mode { return p.mode }

// NewNative returns the Kyber768 + Dilithium3 provider.
func NewNative() *Provider {
	return &Provider{KEM: nativeKEM{}, SignatureScheme: nativeSignature{}, mode: ModeNativePQ}
}

// NewFallback returns the X25519 + Ed25519 provider. Callers that require
// production-grade post-quantum guarantees must reject a Provider whose
// Mode() is ModeFallback.
func NewFallback() *Provider {
	return &Provider{KEM: fallbackKEM{}, SignatureScheme: fallbackSignature{}, mode: ModeFallback}
}

// constantTimeEqual performs a constant-time byte comparison, used by
// Decapsulate implementations to validate encapsulated material without
// leaking timing information (spec.md §4.2).
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// errShortCiphertext is returned by Decapsulate when the ciphertext is
// structurally too short to contain valid encapsulated material.
func errShortCiphertext() error {
	return nodeerr.New(nodeerr.InvalidArgument, "ciphertext too short for decapsulation")
}
