package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

// fallbackKEM implements KEM over X25519 (crypto/ecdh). It is NOT
// post-quantum-safe; spec.md §4.2 requires this be documented and refused
// by any test asserting production-grade status. The "ciphertext" is the
// ephemeral public key, matching the classic ECIES shape.
type fallbackKEM struct{}

func (fallbackKEM) GenerateKeyPair() (pub, priv []byte, err error) {
	sk, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return sk.PublicKey().Bytes(), sk.Bytes(), nil
}

func (fallbackKEM) Encapsulate(pub []byte) (sharedSecret, ciphertext []byte, err error) {
	peerPub, err := ecdh.X25519().NewPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	raw, err := ephemeral.ECDH(peerPub)
	if err != nil {
		return nil, nil, err
	}
	if isZero(raw) {
		return nil, nil, nodeerr.New(nodeerr.IntegrityFailure, "x25519 produced a contributory (all-zero) shared secret")
	}
	sum := sha256.Sum256(raw)
	return sum[:], ephemeral.PublicKey().Bytes(), nil
}

func (fallbackKEM) Decapsulate(priv, ciphertext []byte) (sharedSecret []byte, err error) {
	if len(ciphertext) != 32 {
		return nil, errShortCiphertext()
	}
	sk, err := ecdh.X25519().NewPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	ephemeralPub, err := ecdh.X25519().NewPublicKey(ciphertext)
	if err != nil {
		return nil, err
	}
	raw, err := sk.ECDH(ephemeralPub)
	if err != nil {
		return nil, err
	}
	if constantTimeEqual(raw, make([]byte, len(raw))) {
		return nil, nodeerr.New(nodeerr.IntegrityFailure, "x25519 produced a contributory (all-zero) shared secret")
	}
	sum := sha256.Sum256(raw)
	return sum[:], nil
}

// isZero reports whether b is all-zero bytes, checked in constant time.
func isZero(b []byte) bool {
	return constantTimeEqual(b, make([]byte, len(b)))
}
