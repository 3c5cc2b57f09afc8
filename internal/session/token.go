package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewToken mints a 256-bit session token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
