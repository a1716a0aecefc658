package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/auth"
	"github.com/sakif/dealbot/internal/model"
	"github.com/sakif/dealbot/internal/repository"
)

// LinkTTL is how long a magic link works after it is issued. It is fixed.
const LinkTTL = 24 * time.Hour

// IssuedLink is what the bot gets back from IssueForPhone.
type IssuedLink struct {
	URL       string `json:"url"`
	ExpiresIn string `json:"expires_in"`
	Phone     string `json:"phone"`
}

// LinkService runs the magic-link lifecycle:
//
//	Issue    → random token, expires_at = now + 24h, one INSERT
//	Validate → lookup by exact token AND expires_at > now, in one query
//	MarkUsed → UPDATE ... WHERE used_at IS NULL (first open wins)
//	Open     → Validate, MarkUsed, then load the owner's dashboard
//
// VALID VS USED:
// A token stays valid until it expires even after it has been used. The
// link is sent over WhatsApp and people tap it more than once; used_at is a
// record of the first open, not a lock.
//
// An invalid link (unknown or expired) is not an error anywhere in this
// file. Validate and Open return (nil, nil) for it.
type LinkService struct {
	tokens   repository.AccessTokenRepository
	users    repository.UserRepository
	products repository.ProductRepository
	baseURL  string
	logger   *slog.Logger

	// Swappable in tests.
	now      func() time.Time
	newToken func() (string, error)
}

// NewLinkService creates a LinkService. baseURL is the dashboard origin
// links are built on, e.g. "https://deals.example.com".
func NewLinkService(
	tokens repository.AccessTokenRepository,
	users repository.UserRepository,
	products repository.ProductRepository,
	baseURL string,
	logger *slog.Logger,
) *LinkService {
	return &LinkService{
		tokens:   tokens,
		users:    users,
		products: products,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
		newToken: auth.NewLinkToken,
	}
}

// Issue creates and stores a new token for userID and returns it.
//
// There is no collision retry. With 256 bits of entropy a duplicate does
// not happen; if it did the UNIQUE constraint would surface it as a
// db.QueryError.
func (s *LinkService) Issue(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", apperror.ValidationFailed("user_id", "user id must be positive")
	}

	token, err := s.newToken()
	if err != nil {
		return "", fmt.Errorf("service: generating link token: %w", err)
	}

	expiresAt := s.now().UTC().Add(LinkTTL)
	if err := s.tokens.CreateToken(ctx, userID, token, expiresAt); err != nil {
		return "", fmt.Errorf("service: storing link token for user %d: %w", userID, err)
	}

	s.logger.Info("magic link issued",
		slog.Int64("userID", userID),
		slog.Time("expiresAt", expiresAt),
	)
	return token, nil
}

// IssueForPhone is Issue for the bot, which only knows phone numbers.
func (s *LinkService) IssueForPhone(ctx context.Context, phone string) (*IssuedLink, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperror.ValidationFailed("phone", "phone number is required")
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}

	token, err := s.Issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &IssuedLink{
		URL:       s.LinkURL(token),
		ExpiresIn: "24h",
		Phone:     user.PhoneNumber,
	}, nil
}

// LinkURL builds <origin>/d/<token>.
func (s *LinkService) LinkURL(token string) string {
	return s.baseURL + "/d/" + token
}

// Validate returns the token if it exists and has not expired, or nil.
// Strings we could never have issued are rejected without a query.
func (s *LinkService) Validate(ctx context.Context, token string) (*model.AccessToken, error) {
	if !auth.PlausibleLinkToken(token) {
		return nil, nil
	}

	now := s.now().UTC()
	tok, err := s.tokens.FindValidToken(ctx, token, now)
	if err != nil {
		return nil, fmt.Errorf("service: validating link token: %w", err)
	}
	// The query already filtered on expiry. Re-check against the same instant
	// so a store that rounds timestamps can never hand back a dead token.
	if tok == nil || tok.IsExpired(now) {
		return nil, nil
	}
	return tok, nil
}

// MarkUsed records the first open of token. Calling it again, or on an
// unknown token, is a no-op. It reports whether this call set used_at.
func (s *LinkService) MarkUsed(ctx context.Context, token string) (bool, error) {
	if !auth.PlausibleLinkToken(token) {
		return false, nil
	}

	first, err := s.tokens.MarkTokenUsed(ctx, token, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("service: marking link token used: %w", err)
	}
	return first, nil
}

// Open is what GET /d/{token} runs. It returns nil for an invalid link.
func (s *LinkService) Open(ctx context.Context, token string) (*Dashboard, error) {
	tok, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		s.logger.Info("magic link rejected")
		return nil, nil
	}

	reopened := tok.IsUsed()
	first, err := s.MarkUsed(ctx, token)
	if err != nil {
		return nil, err
	}
	s.logger.Info("magic link opened",
		slog.Int64("userID", tok.UserID),
		slog.Bool("firstUse", first),
		slog.Bool("reopened", reopened),
	)

	user, err := s.users.GetUserByID(ctx, tok.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		// Token outlived its user: treat like any other dead link.
		s.logger.Info("magic link for missing user", slog.Int64("userID", tok.UserID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service: loading user for link: %w", err)
	}
	return loadDashboard(ctx, s.products, user)
}
