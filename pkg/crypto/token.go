package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultTokenBytes yields 128 bits of entropy, enough that guessing a token
// within one rotation interval is infeasible.
const DefaultTokenBytes = 16

// GenerateToken returns a random hex token of the requested byte length.
// Hex keeps the payload short and QR-alphabet friendly.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("crypto: token length must be positive, got %d", length)
	}

	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}
