package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/scrypt"

	"greengate/pkg/apperr"
)

const (
	// minSecretLength matches the startup check in config; NewCipher
	// re-checks so the package is safe to use standalone.
	minSecretLength = 32

	saltLength = 16
	keyLength  = 32 // AES-256
	scryptN    = 1 << 15
	scryptR    = 8
	scryptP    = 1
)

// Cipher performs authenticated encryption of sensitive at-rest fields
// (national ID numbers). Every Encrypt call derives a fresh key from the
// long-lived secret with a random salt, so output is self-contained:
// base64(salt || nonce || ciphertext).
type Cipher struct {
	secret []byte
}

// NewCipher validates the configured secret and returns a Cipher.
// A missing or short secret is a configuration error, not a runtime one.
func NewCipher(secret string) (*Cipher, error) {
	if len(secret) < minSecretLength {
		return nil, apperr.CryptoConfig(fmt.Sprintf("encryption secret must be at least %d characters", minSecretLength))
	}
	return &Cipher{secret: []byte(secret)}, nil
}

// Encrypt encrypts plaintext with AES-256-GCM under a scrypt-derived key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It fails on any tampering or truncation.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	if len(raw) < saltLength {
		return "", fmt.Errorf("ciphertext too short")
	}
	salt := raw[:saltLength]

	aead, err := c.aead(salt)
	if err != nil {
		return "", err
	}

	rest := raw[saltLength:]
	if len(rest) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce := rest[:aead.NonceSize()]
	sealed := rest[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(c.secret, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

// GenerateOTP returns a uniformly random numeric code of the given length.
// crypto/rand with rejection sampling via rand.Int avoids modulo bias.
func GenerateOTP(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}

	maxValue := big.NewInt(1)
	for i := 0; i < length; i++ {
		maxValue.Mul(maxValue, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, maxValue)
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}

	format := fmt.Sprintf("%%0%dd", length)
	return fmt.Sprintf(format, n), nil
}

// GenerateToken returns a secure random hex token of byteLength random bytes.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", byteLength)
	}

	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// ConstantTimeEquals compares two strings without leaking, through timing,
// where they first differ.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
