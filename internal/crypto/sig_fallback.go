package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

// fallbackSignature implements SignatureScheme over Ed25519. NOT
// post-quantum-safe; see Provider.Mode.
type fallbackSignature struct{}

func (fallbackSignature) GenerateKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return []byte(pk), []byte(sk), nil
}

func (fallbackSignature) Sign(message, signingKey []byte) ([]byte, error) {
	if len(signingKey) != ed25519.PrivateKeySize {
		return nil, nodeerr.New(nodeerr.InvalidArgument, "ed25519 signing key has wrong size")
	}
	return ed25519.Sign(ed25519.PrivateKey(signingKey), message), nil
}

func (fallbackSignature) Verify(message, signature, verifyKey []byte) (bool, error) {
	if len(verifyKey) != ed25519.PublicKeySize {
		return false, nodeerr.New(nodeerr.InvalidArgument, "ed25519 verify key has wrong size")
	}
	return ed25519.Verify(ed25519.PublicKey(verifyKey), message, signature), nil
}
