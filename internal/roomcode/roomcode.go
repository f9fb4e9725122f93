// Package roomcode generates the short codes participants share to meet in
// the same room.
package roomcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length  = 6
)

// Generate returns a new 6-character room code.
func Generate() (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

// Normalize canonicalizes user-entered codes.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a well-formed room code.
func Valid(code string) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(charset, rune(code[i])) {
			return false
		}
	}
	return true
}
