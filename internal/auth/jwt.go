// Package auth holds the credentials the dashboard accepts.
//
// There are three of them:
//
//  1. Magic-link tokens (linktoken.go). Opaque random strings stored in
//     access_tokens and handed to a user over WhatsApp. Opening one proves
//     the holder controls the phone number the link was sent to.
//  2. Session tokens (this file). After a magic link is opened the server
//     issues a signed JWT in an HttpOnly cookie so the follow-up API calls
//     (change target, stop tracking) do not need the link again.
//  3. The link API key (password.go). The bot process calls
//     POST /api/generate-link with a bearer key whose bcrypt hash is in config.
//
// WHY A JWT FOR THE SESSION AND NOT ANOTHER DB TOKEN?
// The magic link already did the DB round trip. The session only needs to
// carry "this browser is user N" for a day, and an HMAC signature does that
// without a second table or a lookup per request.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	// SessionCookie is the cookie name the session JWT travels in.
	SessionCookie = "session"

	// SessionTTL matches the magic link lifetime: a session never outlives
	// the link that created it by more than a day.
	SessionTTL = 24 * time.Hour

	issuer = "dealbot"
)

// SessionTokens signs and verifies session JWTs.
//
// The same secret must be used for both operations. When SESSION_SECRET is
// not configured the server generates one at startup, which simply logs
// everyone out on restart.
type SessionTokens struct {
	secret []byte
	now    func() time.Time
}

// NewSessionTokens creates a SessionTokens with the given secret.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSessionTokens(secret string) (*SessionTokens, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &SessionTokens{secret: []byte(secret), now: time.Now}, nil
}

// claims is the JWT payload. "sub" carries the internal user ID in decimal
// and "jti" a unique id per issued session so two sessions for the same
// user minted in the same second are still distinct strings.
type claims struct {
	jwt.RegisteredClaims
}

// Issue signs a session token for userID that lives for SessionTTL.
func (s *SessionTokens) Issue(userID int64) (string, error) {
	return s.IssueWithDuration(userID, SessionTTL)
}

// IssueWithDuration signs a session token with a custom lifetime.
// Tests use a negative duration to get an already-expired token.
func (s *SessionTokens) IssueWithDuration(userID int64, d time.Duration) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("auth: invalid user id %d", userID)
	}
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.NewWithTime(now).String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the user ID.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired
//   - Issuer is "dealbot"
//   - Algorithm is HS256 (a token claiming "none" is rejected)
func (s *SessionTokens) Validate(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: session expired")
		}
		return 0, fmt.Errorf("auth: invalid session: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid session claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: session has no valid subject")
	}

	return userID, nil
}
