package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// NewAEAD derives an AES-256-GCM cipher from key material (a passphrase or
// the VAULT_KEY setting).
func NewAEAD(keyMaterial []byte) (cipher.AEAD, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("vault key material is empty")
	}
	key := sha256.Sum256(keyMaterial)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// seal encrypts plain with a fresh random nonce: result = nonce || ciphertext.
// The commitment is bound as additional data so sealed secrets cannot be
// swapped between identities.
func seal(aead cipher.AEAD, plain []byte, commitment string) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(commitment)), nil
}

func unseal(aead cipher.AEAD, sealed []byte, commitment string) ([]byte, error) {
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed secret is truncated")
	}
	nonce, data := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, data, []byte(commitment))
	if err != nil {
		return nil, fmt.Errorf("open sealed secret: %w", err)
	}
	return plain, nil
}
