package utils

import (
	"crypto/rand"
	"fmt"
)

// RandomString returns 32 hex characters, used as the unguessable prefix of
// served media paths.
func RandomString() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("can't generate a random number: %w", err)
	}
	return fmt.Sprintf("%X", b), nil
}
