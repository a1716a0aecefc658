package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/auth"
	"github.com/sakif/dealbot/internal/service"
)

// ProductService is the part of service.ProductService the HTTP layer needs.
type ProductService interface {
	Dashboard(ctx context.Context, phone string) (*service.Dashboard, error)
	DashboardForUser(ctx context.Context, userID int64) (*service.Dashboard, error)
	Detail(ctx context.Context, id int64) (*service.ProductDetail, error)
	UpdateTarget(ctx context.Context, userID, id int64, price float64) error
	Deactivate(ctx context.Context, userID, id int64) error
	Stats(ctx context.Context) service.Stats
}

// WhatsApp is the sign-up information shown on the landing endpoint.
type WhatsApp struct {
	Number      string `json:"number"`
	SandboxJoin string `json:"sandboxJoin"`
}

// DashboardHandler serves the read-mostly dashboard API.
type DashboardHandler struct {
	products ProductService
	whatsapp WhatsApp
	logger   *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(products ProductService, whatsapp WhatsApp, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		products: products,
		whatsapp: whatsapp,
		logger:   logger,
	}
}

type landingResponse struct {
	Service  string        `json:"service"`
	WhatsApp WhatsApp      `json:"whatsapp"`
	Stats    service.Stats `json:"stats"`
}

// HandleLanding answers GET /. Stats are best effort and read zero when
// the database is down; this endpoint never fails because of it.
func (h *DashboardHandler) HandleLanding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, landingResponse{
		Service:  "dealbot",
		WhatsApp: h.whatsapp,
		Stats:    h.products.Stats(r.Context()),
	})
}

// HandleDashboard answers GET /api/dashboard?phone=+1...
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.products.Dashboard(r.Context(), r.URL.Query().Get("phone"))
	if err != nil {
		logFailure(h.logger, "loading dashboard", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// HandleSession answers GET /api/session with the dashboard of the user
// the session cookie belongs to. Mounted behind auth.RequireSession.
func (h *DashboardHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid session required"))
		return
	}

	dash, err := h.products.DashboardForUser(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "loading session dashboard", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// HandleDetail answers GET /api/products/{id}.
func (h *DashboardHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	detail, err := h.products.Detail(r.Context(), id)
	if err != nil {
		logFailure(h.logger, "loading product detail", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type targetRequest struct {
	TargetPrice *float64 `json:"target_price"`
}

// HandleTarget answers POST /api/products/{id}/target.
//
// The body is either JSON {"target_price": 79.99} or a form post with a
// target_price field, so a plain HTML form can call it.
func (h *DashboardHandler) HandleTarget(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid session required"))
		return
	}
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	price, err := targetPrice(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.products.UpdateTarget(r.Context(), userID, id, price); err != nil {
		logFailure(h.logger, "updating target price", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "targetPrice": price})
}

// HandleDelete answers POST /api/products/{id}/delete. It is a soft
// delete: the product stops being tracked, its history stays.
func (h *DashboardHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid session required"))
		return
	}
	id, err := productID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.products.Deactivate(r.Context(), userID, id); err != nil {
		logFailure(h.logger, "deactivating product", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NotFound("product", raw)
	}
	return id, nil
}

func targetPrice(w http.ResponseWriter, r *http.Request) (float64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<10)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var req targetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetPrice == nil {
			return 0, apperror.ValidationFailed("target_price", "target_price is required")
		}
		return *req.TargetPrice, nil
	}

	if err := r.ParseForm(); err != nil {
		return 0, apperror.ValidationFailed("target_price", "target_price is required")
	}
	price, err := strconv.ParseFloat(r.PostForm.Get("target_price"), 64)
	if err != nil {
		return 0, apperror.ValidationFailed("target_price", "target_price must be a number")
	}
	return price, nil
}
