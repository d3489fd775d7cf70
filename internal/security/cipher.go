package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecrypt is returned when a ciphertext is malformed, tampered with, or bound to different associated data.
var ErrDecrypt = errors.New("decrypt failed")

// Cipher encrypts provider credentials at rest with XChaCha20-Poly1305. Ciphertexts are
// base64(nonce || sealed) and are bound to associated data (tenant and provider) so a credential
// copied onto another tenant fails to open.
type Cipher struct {
	key []byte
}

// NewCipher returns a Cipher for a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Cipher{key: k}, nil
}

// CredentialAAD is the associated data used for a tenant's provider credentials.
func CredentialAAD(tenantID, provider string) []byte {
	return []byte("credentials:" + tenantID + ":" + provider)
}

// Encrypt seals plaintext with aad.
func (c *Cipher) Encrypt(plaintext, aad []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, plaintext, aad)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same aad.
func (c *Cipher) Decrypt(ciphertext string, aad []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecrypt
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrDecrypt
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}
