package crypto

import (
	"crypto"
	"crypto/rand"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// nativeSignature wraps Dilithium3 behind the SignatureScheme interface.
type nativeSignature struct{}

func (nativeSignature) GenerateKeyPair() (pub, priv []byte, err error) {
	pk, sk, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pk.Bytes(), sk.Bytes(), nil
}

func (nativeSignature) Sign(message, signingKey []byte) ([]byte, error) {
	var sk mode3.PrivateKey
	if err := sk.UnmarshalBinary(signingKey); err != nil {
		return nil, err
	}
	return sk.Sign(rand.Reader, message, crypto.Hash(0))
}

func (nativeSignature) Verify(message, signature, verifyKey []byte) (bool, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(verifyKey); err != nil {
		return false, err
	}
	return mode3.Verify(&pk, message, signature), nil
}
