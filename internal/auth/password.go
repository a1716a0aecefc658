package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// WHY BCRYPT FOR AN API KEY?
// The link API key is a long-lived shared secret between the WhatsApp bot
// and the dashboard. Only its bcrypt hash goes into config, so a leaked
// .env or process listing does not leak a usable key. bcrypt also compares
// in constant time.
//
// Generate a hash for LINK_API_KEY_HASH with:
//
//	dealbot hash-key <key>

// defaultCost is the bcrypt work factor for hashes produced by HashKey.
const defaultCost = 12

// ErrInvalidAPIKey is returned by APIKey.Verify for any mismatch.
var ErrInvalidAPIKey = errors.New("auth: invalid api key")

// APIKey verifies bearer keys against a stored bcrypt hash.
//
// A zero-value hash means no key is configured. Enabled reports that, and
// the router leaves /api/generate-link open in that case (local dev).
type APIKey struct {
	hash []byte
}

// NewAPIKey wraps a bcrypt hash. An empty hash disables the check.
func NewAPIKey(hash string) (*APIKey, error) {
	if hash == "" {
		return &APIKey{}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: api key hash is not a bcrypt hash: %w", err)
	}
	return &APIKey{hash: []byte(hash)}, nil
}

// Enabled reports whether a key hash is configured.
func (k *APIKey) Enabled() bool {
	return len(k.hash) > 0
}

// Verify checks a presented key. It returns nil on match.
func (k *APIKey) Verify(key string) error {
	if !k.Enabled() {
		return nil
	}
	if key == "" || len(key) > 72 {
		return ErrInvalidAPIKey
	}
	err := bcrypt.CompareHashAndPassword(k.hash, []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidAPIKey
		}
		return fmt.Errorf("auth: comparing api key hash: %w", err)
	}
	return nil
}

// HashKey hashes a plaintext key with the default cost. It backs the
// hash-key CLI command.
func HashKey(plaintext string) (string, error) {
	return hashKeyWithCost(plaintext, defaultCost)
}

func hashKeyWithCost(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: api key must not be empty")
	}
	if len(plaintext) > 72 {
		// bcrypt silently truncates past 72 bytes.
		return "", fmt.Errorf("auth: api key must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing api key: %w", err)
	}
	return string(hashed), nil
}
