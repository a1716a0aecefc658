package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/auth"
	"github.com/sakif/dealbot/internal/service"
)

// LinkService is the part of service.LinkService the HTTP layer needs.
// Tests substitute a fake.
type LinkService interface {
	IssueForPhone(ctx context.Context, phone string) (*service.IssuedLink, error)
	Open(ctx context.Context, token string) (*service.Dashboard, error)
}

// LinkHandler serves the two magic-link endpoints: the bot's
// POST /api/generate-link and the user's GET /d/{token}.
type LinkHandler struct {
	links        LinkService
	sessions     *auth.SessionTokens
	secureCookie bool
	logger       *slog.Logger
}

// NewLinkHandler creates a LinkHandler. secureCookie marks the session
// cookie Secure and should be true when the dashboard is served over HTTPS.
func NewLinkHandler(links LinkService, sessions *auth.SessionTokens, secureCookie bool, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		links:        links,
		sessions:     sessions,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type generateLinkRequest struct {
	Phone string `json:"phone"`
}

// HandleGenerate issues a magic link for a phone number.
//
// HTTP: POST /api/generate-link
//
//	request:  {"phone": "+15550000042"}
//	response: {"url": "https://.../d/<token>", "expires_in": "24h", "phone": "+15550000042"}
func (h *LinkHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be JSON like {\"phone\": \"+1...\"}"))
		return
	}

	link, err := h.links.IssueForPhone(r.Context(), req.Phone)
	if err != nil {
		logFailure(h.logger, "issuing magic link", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, link)
}

// HandleOpen is the magic link entry point.
//
// HTTP: GET /d/{token}
//
// A valid link answers 200 with the dashboard and sets a session cookie so
// the edit endpoints work afterwards. An unknown or expired link answers 410.
func (h *LinkHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	dash, err := h.links.Open(r.Context(), token)
	if err != nil {
		logFailure(h.logger, "opening magic link", err)
		writeError(w, err)
		return
	}
	if dash == nil {
		writeLinkExpired(w)
		return
	}

	session, err := h.sessions.Issue(dash.User.ID)
	if err != nil {
		h.logger.Error("issuing session", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	auth.SetSessionCookie(w, session, h.secureCookie)

	writeJSON(w, http.StatusOK, dash)
}

// logFailure logs backend failures. Expected outcomes (validation, not
// found) are not logged; the request logger already records their status.
func logFailure(logger *slog.Logger, action string, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return
	}
	logger.Error(action+" failed", slog.String("error", err.Error()))
}
