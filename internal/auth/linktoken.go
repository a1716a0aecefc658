package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// linkTokenBytes is the entropy of a magic-link token: 256 bits.
	linkTokenBytes = 32

	// LinkTokenLen is the encoded length of a token from NewLinkToken.
	// RawURLEncoding of 32 bytes is 43 characters, with no padding.
	LinkTokenLen = 43

	// MaxLinkTokenLen bounds what the validator will even look up. Anything
	// longer cannot have been issued by us.
	MaxLinkTokenLen = 128
)

// NewLinkToken returns a fresh URL-safe random token.
//
// The alphabet is A-Z a-z 0-9 - _ so the token can be dropped into a path
// segment without escaping.
func NewLinkToken() (string, error) {
	b := make([]byte, linkTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: reading random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// PlausibleLinkToken is a cheap shape check done before touching the
// database. It only rejects strings we could never have issued.
func PlausibleLinkToken(token string) bool {
	if token == "" || len(token) > MaxLinkTokenLen {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
