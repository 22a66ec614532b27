// Package utils provides small shared helpers for lattice.
//
// GenerateID supplies the random suffix of generated node names and the
// ownership tokens stored in redis lock keys.

package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateID returns a random 12-character hex identifier, e.g. "a1b2c3d4e5f6".
func GenerateID() (string, error) {
	bytes := make([]byte, 6)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
