package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"table-ordering/internal/domain"
)

const maxTokenLen = 64

// NewToken mints an 8-character lowercase hex table token.
func NewToken() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// TokenOrMint validates a staff-supplied token, or mints one when requested is blank.
func TokenOrMint(requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return NewToken()
	}
	if len(requested) > maxTokenLen {
		return "", fmt.Errorf("%w: token longer than %d characters", domain.ErrInvalidInput, maxTokenLen)
	}
	return requested, nil
}
