// Package cryptox implements at-rest encryption for vault data and the
// password-hashing capability used by authentication.
//
// Stored secrets are sealed with AES-256-GCM under a key derived per owner,
// so no two owners' records are decryptable under the same key. Export
// bundles use a separate derivation label, keeping bundle keys and field
// keys independent even for the same owner.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/dkurganov/passvault/internal/common"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
)

const (
	keyLength   = 32
	nonceLength = 12

	labelField  = "field:"
	labelBundle = "bundle:"
)

// ErrShortMasterKey is returned by NewEngine when the configured master key
// has less than 32 bytes of material.
var ErrShortMasterKey = errors.New("cryptox: master key must be at least 32 bytes")

// HashPassword hashes a plaintext password with bcrypt. The result is safe
// to persist; verification goes through VerifyPassword only.
func HashPassword(password []byte) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// The comparison is constant-time inside bcrypt.
func VerifyPassword(hash string, password []byte) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), password) == nil
}

// Engine derives per-owner keys from a master key and seals/opens payloads
// with AES-256-GCM. It is stateless apart from the master key and safe for
// concurrent use.
type Engine struct {
	master []byte
}

// NewEngine creates an Engine from the master key material.
func NewEngine(master []byte) (*Engine, error) {
	if len(master) < keyLength {
		return nil, ErrShortMasterKey
	}
	m := make([]byte, len(master))
	copy(m, master)
	return &Engine{master: m}, nil
}

// deriveKey expands the master key into a 32-byte subkey bound to the
// label and the owner. Owners never share a subkey.
func (e *Engine) deriveKey(label, ownerID string) ([]byte, error) {
	r := hkdf.New(sha256.New, e.master, nil, []byte(label+ownerID))
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	// nonce || ciphertext
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, data []byte) ([]byte, error) {
	if len(data) < nonceLength {
		return nil, common.ErrorDecryptFailed
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, data[nonceLength:], data[:nonceLength], nil)
	if err != nil {
		// never return the undecoded input: corruption must surface
		return nil, common.ErrorDecryptFailed
	}
	return plaintext, nil
}

// EncryptField seals a single record field for the given owner and returns
// it base64-encoded for storage in a text column.
func (e *Engine) EncryptField(ownerID string, plaintext []byte) (string, error) {
	key, err := e.deriveKey(labelField, ownerID)
	if err != nil {
		return "", err
	}
	data, err := seal(key, plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptField reverses EncryptField. Malformed encodings and ciphertexts
// produced under another key fail with common.ErrorDecryptFailed.
func (e *Engine) DecryptField(ownerID string, encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, common.ErrorDecryptFailed
	}
	key, err := e.deriveKey(labelField, ownerID)
	if err != nil {
		return nil, err
	}
	return open(key, data)
}

// EncryptBundle seals a whole-vault export blob for the given owner.
func (e *Engine) EncryptBundle(ownerID string, plaintext []byte) ([]byte, error) {
	key, err := e.deriveKey(labelBundle, ownerID)
	if err != nil {
		return nil, err
	}
	return seal(key, plaintext)
}

// DecryptBundle reverses EncryptBundle.
func (e *Engine) DecryptBundle(ownerID string, data []byte) ([]byte, error) {
	key, err := e.deriveKey(labelBundle, ownerID)
	if err != nil {
		return nil, err
	}
	return open(key, data)
}
