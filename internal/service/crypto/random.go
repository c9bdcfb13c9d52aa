package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// GenerateRandomBytes generates n random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateRandomHex generates a random hex string of n bytes
func GenerateRandomHex(n int) (string, error) {
	b, err := GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RequestIDPrefix prefixes every request id the emulator stamps on proxied calls.
const RequestIDPrefix = "SWA-CLI-"

// GenerateRequestID returns "SWA-CLI-" followed by 16 random upper-case base36 characters.
func GenerateRequestID() (string, error) {
	b, err := GenerateRandomBytes(10)
	if err != nil {
		return "", err
	}
	id := strings.ToUpper(new(big.Int).SetBytes(b).Text(36))
	if len(id) < 16 {
		id = strings.Repeat("0", 16-len(id)) + id
	}
	return RequestIDPrefix + id, nil
}

// MustGenerateRequestID generates a request id or panics
func MustGenerateRequestID() string {
	id, err := GenerateRequestID()
	if err != nil {
		panic(err)
	}
	return id
}

// SecureCompare performs a constant-time comparison of two strings.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
