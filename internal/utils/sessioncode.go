package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSessionCode returns a 16-character lowercase hex token used to correlate
// an evidence session across uploads. It is opaque and carries no authority.
func NewSessionCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
