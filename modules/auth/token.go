package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// verificationTokenBytes is the entropy of an email verification token.
const verificationTokenBytes = 32

// NewVerificationToken returns a random 64-character hex token.
func NewVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
