// Package postalcode encrypts postal codes at rest and classifies stored values.
package postalcode

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"golang.org/x/text/width"
)

const (
	minDigits = 4
	maxDigits = 10
)

// State classifies a stored postal code after decryption.
type State string

const (
	// StateAbsent means no postal code was stored.
	StateAbsent State = "absent"
	// StateLegacy means the row predates encryption and holds plaintext.
	StateLegacy State = "legacy"
	// StateDecrypted means the stored token decrypted cleanly.
	StateDecrypted State = "decrypted"
	// StateCorrupt means the stored token could not be decrypted.
	StateCorrupt State = "corrupt"
)

// PostalCode is a stored postal code as seen by readers.
type PostalCode struct {
	Value string
	State State
}

// Known reports whether Value holds a usable postal code.
func (p PostalCode) Known() bool {
	return p.State == StateLegacy || p.State == StateDecrypted
}

// Matches reports whether the postal code equals filter. Unknown codes
// never match a non-empty filter.
func (p PostalCode) Matches(filter string) bool {
	filter = Normalize(filter)
	if filter == "" {
		return true
	}
	return p.Known() && p.Value == filter
}

// Cipher encrypts postal codes with AES-256-CBC under a key derived from a
// shared passphrase.
type Cipher struct {
	block  cipher.Block
	random io.Reader
}

// NewCipher derives the AES key as SHA-256(passphrase).
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("postal code passphrase is required")
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return &Cipher{block: block, random: rand.Reader}, nil
}

// Encrypt returns hex(iv):hex(ciphertext). A fresh IV is drawn per call.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c == nil || c.block == nil {
		return "", fmt.Errorf("postal code cipher is not configured")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return "", fmt.Errorf("read postal code iv: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. A value without ':' is legacy plaintext and is
// returned unchanged. Malformed tokens fail with POSTAL_CODE_CORRUPT.
func (c *Cipher) Decrypt(token string) (string, error) {
	if c == nil || c.block == nil {
		return "", fmt.Errorf("postal code cipher is not configured")
	}
	ivHex, ctHex, found := strings.Cut(token, ":")
	if !found {
		return token, nil
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", corrupt("decode postal code iv", err)
	}
	if len(iv) != aes.BlockSize {
		return "", corrupt(fmt.Sprintf("postal code iv has %d bytes", len(iv)), nil)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", corrupt("decode postal code ciphertext", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", corrupt("postal code ciphertext is not block aligned", nil)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)
	unpadded, ok := unpad(plaintext)
	if !ok {
		return "", corrupt("postal code padding is invalid", nil)
	}
	return string(unpadded), nil
}

// Reveal turns a stored column value into a tagged PostalCode.
func (c *Cipher) Reveal(stored string) PostalCode {
	if stored == "" {
		return PostalCode{State: StateAbsent}
	}
	if !strings.Contains(stored, ":") {
		return PostalCode{Value: stored, State: StateLegacy}
	}
	value, err := c.Decrypt(stored)
	if err != nil {
		return PostalCode{State: StateCorrupt}
	}
	return PostalCode{Value: value, State: StateDecrypted}
}

// Normalize folds full-width digits to ASCII and trims surrounding space.
func Normalize(raw string) string {
	return strings.TrimSpace(width.Fold.String(raw))
}

// Validate requires minDigits to maxDigits ASCII digits.
func Validate(code string) error {
	if len(code) < minDigits || len(code) > maxDigits {
		return apperrors.WithMetadata(apperrors.CodePostalCodeInvalid,
			fmt.Sprintf("postal code must have %d to %d digits", minDigits, maxDigits),
			map[string]string{"length": fmt.Sprint(len(code))})
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return apperrors.New(apperrors.CodePostalCodeInvalid, "postal code must contain only digits")
		}
	}
	return nil
}

func corrupt(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodePostalCodeCorrupt, message, cause)
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte) ([]byte, bool) {
	if len(data) == 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
