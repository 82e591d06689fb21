package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/pbkdf2"
)

// Vault encrypts OAuth tokens before they reach the database. Tokens are
// never stored in plain text.
//
// Blob layout: base64(salt(64) || iv(16) || tag(16) || ciphertext). Every
// value carries its own salt, so any blob can be decrypted knowing only the
// master key and the fixed lengths.
const (
	saltLength = 64
	ivLength   = 16
	tagLength  = 16
	keyLength  = 32

	pbkdf2Iterations = 100000
)

var ErrDecryptFailed = errors.New("failed to decrypt token")

type Vault struct {
	masterKey []byte
}

// NewVault builds a vault from the TOKEN_ENCRYPTION_KEY material. A missing
// or under-length key is a deployment configuration error: in production the
// constructor fails, in development it warns loudly and derives a key so
// local setups still work.
func NewVault(masterKey, appEnv string) (*Vault, error) {
	key := []byte(masterKey)

	if len(key) < keyLength {
		if appEnv == "production" {
			return nil, fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least %d bytes in production", keyLength)
		}

		slog.Warn("TOKEN_ENCRYPTION_KEY missing or too short, deriving insecure development key",
			slog.String("env", appEnv))

		if len(key) == 0 {
			key = []byte("default-insecure-key-change-this-in-production-please!")
		}
		key = deriveFallbackKey(key)
	}

	return &Vault{masterKey: key}, nil
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	aead, err := v.newAEAD(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the auth tag after the ciphertext; the stored layout
	// wants it in front, so split and reorder.
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	combined := make([]byte, 0, saltLength+ivLength+tagLength+len(ciphertext))
	combined = append(combined, salt...)
	combined = append(combined, iv...)
	combined = append(combined, tag...)
	combined = append(combined, ciphertext...)

	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt reverses Encrypt. Any tampering or key mismatch surfaces as the
// generic ErrDecryptFailed, never internal crypto state.
func (v *Vault) Decrypt(blob string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		slog.Info(err.Error())
		return "", ErrDecryptFailed
	}

	if len(combined) < saltLength+ivLength+tagLength {
		return "", ErrDecryptFailed
	}

	salt := combined[:saltLength]
	iv := combined[saltLength : saltLength+ivLength]
	tag := combined[saltLength+ivLength : saltLength+ivLength+tagLength]
	ciphertext := combined[saltLength+ivLength+tagLength:]

	aead, err := v.newAEAD(salt)
	if err != nil {
		slog.Info(err.Error())
		return "", ErrDecryptFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

func (v *Vault) IsValid(blob string) bool {
	_, err := v.Decrypt(blob)
	return err == nil
}

func (v *Vault) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(v.masterKey, salt, pbkdf2Iterations, keyLength, sha512.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCMWithNonceSize(block, ivLength)
}

func deriveFallbackKey(password []byte) []byte {
	salt := sha256.Sum256([]byte("token-encryption-salt"))
	return pbkdf2.Key(password, salt[:], pbkdf2Iterations, keyLength, sha512.New)
}

// GenerateKey returns a random base64-encoded master key suitable for the
// TOKEN_ENCRYPTION_KEY environment variable.
func GenerateKey() (string, error) {
	key := make([]byte, keyLength)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
