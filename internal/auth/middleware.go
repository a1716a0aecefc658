package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A package-private type means
// only this package can create a key of type contextKey, so nothing else can
// read or shadow the user ID.
type contextKey string

const userIDKey contextKey = "userID"

const unauthorizedBody = `{"error":"unauthorized","message":"valid session required"}`

// RequireSession rejects requests without a valid session cookie with 401
// and stores the user ID in the context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(tokens *SessionTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessionUserID(r, tokens)
			if err != nil {
				http.Error(w, unauthorizedBody, http.StatusUnauthorized)
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalSession attaches the user ID when a valid session is present and
// never blocks. The landing page uses it to decide between the sign-in
// instructions and a redirect to the dashboard.
func OptionalSession(tokens *SessionTokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := sessionUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIKey guards machine endpoints with "Authorization: Bearer <key>".
// When the key is not configured every request passes.
func RequireAPIKey(key *APIKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key.Enabled() {
				if err := key.Verify(bearer(r)); err != nil {
					http.Error(w, `{"error":"unauthorized","message":"valid api key required"}`, http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a child context carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the session user's ID from the request context.
// Returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// SetSessionCookie writes the session JWT as an HttpOnly cookie.
// secure should be true whenever the dashboard is served over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionUserID(r *http.Request, tokens *SessionTokens) (int64, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return 0, err
	}
	return tokens.Validate(cookie.Value)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
