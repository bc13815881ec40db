package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
)

// deriveKey folds a KEM shared secret of arbitrary length into a 256-bit
// symmetric key.
func deriveKey(sharedSecret []byte) []byte {
	sum := sha256.Sum256(sharedSecret)
	return sum[:]
}

// Encrypt derives a 256-bit symmetric key from the KEM and seals plaintext
// with an authenticated cipher under a fresh 96-bit nonce (spec.md §4.2).
// The wire format is kemCiphertext-length-prefixed || nonce || sealed.
func (p *Provider) Encrypt(plaintext, pubKey []byte) ([]byte, error) {
	sharedSecret, kemCiphertext, err := p.Encapsulate(pubKey)
	if err != nil {
		return nil, err
	}
	key := sharedSecret
	if len(key) != chacha20poly1305.KeySize {
		key = deriveKey(sharedSecret)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize) // 12 bytes = 96 bits
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 4+len(kemCiphertext)+len(nonce)+len(sealed))
	out = append(out, encodeLen(len(kemCiphertext))...)
	out = append(out, kemCiphertext...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt is the inverse of Encrypt. It fails with IntegrityFailure
// (AuthTagMismatch) on tampering, per spec.md §4.2.
func (p *Provider) Decrypt(blob, privKey []byte) ([]byte, error) {
	if len(blob) < 4 {
		return nil, nodeerr.New(nodeerr.InvalidArgument, "encrypted blob too short")
	}
	ctLen := decodeLen(blob[:4])
	blob = blob[4:]
	if len(blob) < ctLen+chacha20poly1305.NonceSize {
		return nil, nodeerr.New(nodeerr.InvalidArgument, "encrypted blob too short")
	}
	kemCiphertext := blob[:ctLen]
	rest := blob[ctLen:]
	nonce, sealed := rest[:chacha20poly1305.NonceSize], rest[chacha20poly1305.NonceSize:]

	sharedSecret, err := p.Decapsulate(privKey, kemCiphertext)
	if err != nil {
		return nil, err
	}
	key := sharedSecret
	if len(key) != chacha20poly1305.KeySize {
		key = deriveKey(sharedSecret)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, nodeerr.Wrap(err, nodeerr.IntegrityFailure, "auth tag mismatch")
	}
	return plaintext, nil
}

func encodeLen(n int) []byte {
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

func decodeLen(b []byte) int {
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}
