// FILE: haystackauth/src/internal/scram/crypto.go
package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/xdg-go/stringprep"
	"golang.org/x/crypto/pbkdf2"
)

var ErrUnsupportedHash = errors.New("unsupported hash function")

// Algorithm is a hash negotiated through the challenge "hash" parameter.
type Algorithm struct {
	Name string
	Bits int
	New  func() hash.Hash
}

// KeyLen is the derived key length in bytes.
func (a *Algorithm) KeyLen() int {
	return a.Bits / 8
}

var (
	SHA1   = &Algorithm{Name: "SHA-1", Bits: 160, New: sha1.New}
	SHA256 = &Algorithm{Name: "SHA-256", Bits: 256, New: sha256.New}
)

// LookupHash resolves a hash parameter value, case-insensitively.
func LookupHash(name string) (*Algorithm, error) {
	switch strings.ToLower(name) {
	case "sha-1":
		return SHA1, nil
	case "sha-256":
		return SHA256, nil
	default:
		return nil, ErrUnsupportedHash
	}
}

// Hash returns H(data).
func (a *Algorithm) Hash(data []byte) []byte {
	h := a.New()
	h.Write(data)
	return h.Sum(nil)
}

// HMAC returns HMAC(key, data).
func (a *Algorithm) HMAC(key, data []byte) []byte {
	mac := hmac.New(a.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// SaltedPassword derives Hi(password, salt, iterations) with PBKDF2 keyed by
// the algorithm's HMAC.
func (a *Algorithm) SaltedPassword(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, a.KeyLen(), a.New)
}

// NormalizePassword applies SASLprep. Passwords rejected by the profile are
// used as given. The result never shares storage with password.
func NormalizePassword(password []byte) []byte {
	normalized, err := stringprep.SASLprep.Prepare(string(password))
	if err != nil {
		return append([]byte(nil), password...)
	}
	return []byte(normalized)
}

// Nonce returns n printable characters from a cryptographic source.
func Nonce(n int) (string, error) {
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(n)+1)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:n], nil
}

// EncodeData encodes a SCRAM message for a header "data" parameter.
func EncodeData(msg string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(msg))
}

// DecodeData decodes base64 in either alphabet, with or without padding.
func DecodeData(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	return base64.RawStdEncoding.DecodeString(s)
}

// XOR returns a ^ b for equal-length inputs.
func XOR(a, b []byte) []byte {
	if len(a) != len(b) {
		panic("xor length mismatch")
	}
	result := make([]byte, len(a))
	for i := range a {
		result[i] = a[i] ^ b[i]
	}
	return result
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
