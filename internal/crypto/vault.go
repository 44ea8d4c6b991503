// Package crypto stores NVR passwords encrypted at rest. A single symmetric
// key is derived from the process SECRET_KEY; decrypted values live only for
// the duration of a sync run and must never reach logs or event records.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrEmptyKey   = errors.New("vault: SECRET_KEY is empty")
	ErrDecryption = errors.New("vault: decryption failed: wrong key or corrupted value")
)

const (
	kdfIterations = 4096
	kdfSalt       = "netmanager-credential-vault"
	// prefix marks vault-format ciphertexts so legacy plaintext rows can be
	// detected during migration.
	prefix = "gcm:"
)

type Vault struct {
	key []byte
}

// NewVault derives the AES-256 key from the shared secret.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}
	key := pbkdf2.Key([]byte(secret), []byte(kdfSalt), kdfIterations, 32, sha256.New)
	return &Vault{key: key}, nil
}

// Encrypt seals a password for storage. Output is "gcm:" + base64 of
// nonce||ciphertext||tag. Empty input stays empty.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored password. Values without the vault prefix are
// returned verbatim (pre-encryption rows).
func (v *Vault) Decrypt(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	if len(stored) < len(prefix) || stored[:len(prefix)] != prefix {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored[len(prefix):])
	if err != nil {
		return "", ErrDecryption
	}
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", ErrDecryption
	}
	plaintext, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
