// Package cryptox implements the client-side cryptography used by the
// transfer engine: master-key derivation, per-file keys, AES-GCM sealing of
// metadata envelopes and chunk payloads, and the lowercased-name lookup hash.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/crypto/argon2"
)

// GenerateSalt returns size cryptographically random bytes.
func GenerateSalt(size int) []byte {
	b := make([]byte, size)
	_, _ = rand.Read(b)
	return b
}

// MakeVerifier derives the login verifier sent to the server in place of the
// master key itself.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches the user password with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// NewFileKey generates a fresh 256-bit per-file symmetric key.
func NewFileKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// NameHash returns the hex digest of the lowercased name. The server stores
// it next to the encrypted metadata so existence checks work without
// decrypting anything.
func NameHash(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])
}

// EncryptMetadata serializes v to JSON and seals it with AES-GCM under key.
// A fresh 12-byte nonce is generated per call and returned alongside the
// ciphertext.
//
// The key must be a valid AES key length (16, 24 or 32 bytes).
func EncryptMetadata(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptMetadata opens a metadata envelope produced by EncryptMetadata and
// unmarshals the JSON payload into v.
func DecryptMetadata(ciphertext, nonce, key []byte, v any) error {
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

// EncryptChunk seals one raw chunk under the per-file key. The nonce is
// prepended to the ciphertext so each chunk is independently decryptable.
func EncryptChunk(plain, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, plain, nil), nil
}

// DecryptChunk reverses EncryptChunk.
func DecryptChunk(sealed, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	ns := aesgcm.NonceSize()
	if len(sealed) < ns {
		return nil, ErrCiphertextTooShort
	}

	return aesgcm.Open(nil, sealed[:ns], sealed[ns:], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
