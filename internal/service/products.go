// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never *db.Provider, so the tests in
// this package run against in-memory fakes and the same code serves both
// SQLite and PostgreSQL deployments.
//
// Services return apperror values (NotFound, ValidationFailed, Forbidden)
// and never HTTP status codes; the handler package does that translation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/model"
	"github.com/sakif/dealbot/internal/repository"
)

// HistoryLimit is how many price points the detail view returns.
const HistoryLimit = 60

// ProductView is a tracked product plus the values the dashboard derives
// from its prices.
type ProductView struct {
	model.TrackedProduct
	Status  string   `json:"status"`
	Savings *float64 `json:"savings"`
}

// Dashboard is everything one user's dashboard shows.
type Dashboard struct {
	User     model.User    `json:"user"`
	Products []ProductView `json:"products"`
}

// ProductDetail is one product with its recent price history.
type ProductDetail struct {
	Product    ProductView        `json:"product"`
	History    []model.PricePoint `json:"history"`
	OwnerPhone string             `json:"ownerPhone"`
}

// Stats are the landing page counters.
type Stats struct {
	Users          int64 `json:"users"`
	ActiveProducts int64 `json:"activeProducts"`
}

// ProductService handles the dashboard reads and the two edits a user can
// make to a tracked product.
type ProductService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	logger   *slog.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(users repository.UserRepository, products repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		users:    users,
		products: products,
		logger:   logger,
	}
}

// Dashboard looks a user up by phone number and returns their active
// products, newest first.
func (s *ProductService) Dashboard(ctx context.Context, phone string) (*Dashboard, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, apperror.ValidationFailed("phone", "phone number is required")
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return loadDashboard(ctx, s.products, user)
}

// DashboardForUser is Dashboard keyed by user ID, for session requests.
func (s *ProductService) DashboardForUser(ctx context.Context, userID int64) (*Dashboard, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return loadDashboard(ctx, s.products, user)
}

// Detail returns a product (active or not), up to HistoryLimit price points
// oldest first, and the owner's phone number.
func (s *ProductService) Detail(ctx context.Context, id int64) (*ProductDetail, error) {
	if id <= 0 {
		return nil, apperror.NotFound("product", strconv.FormatInt(id, 10))
	}

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.products.PriceHistory(ctx, id, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("service: loading history for product %d: %w", id, err)
	}

	owner, err := s.users.GetUserByID(ctx, product.UserID)
	if err != nil {
		return nil, fmt.Errorf("service: loading owner of product %d: %w", id, err)
	}

	return &ProductDetail{
		Product:    viewOf(*product),
		History:    history,
		OwnerPhone: owner.PhoneNumber,
	}, nil
}

// UpdateTarget sets a new target price on a product owned by userID.
func (s *ProductService) UpdateTarget(ctx context.Context, userID, id int64, price float64) error {
	if !(price > 0) || math.IsInf(price, 1) {
		return apperror.ValidationFailed("target_price", "target price must be greater than zero")
	}
	if err := s.checkOwner(ctx, userID, id); err != nil {
		return err
	}

	if err := s.products.UpdateTargetPrice(ctx, id, price); err != nil {
		return err
	}

	s.logger.Info("target price updated",
		slog.Int64("productID", id),
		slog.Int64("userID", userID),
		slog.Float64("target", price),
	)
	return nil
}

// Deactivate stops tracking a product owned by userID. The row and its
// price history stay.
func (s *ProductService) Deactivate(ctx context.Context, userID, id int64) error {
	if err := s.checkOwner(ctx, userID, id); err != nil {
		return err
	}

	if err := s.products.Deactivate(ctx, id); err != nil {
		return err
	}

	s.logger.Info("product deactivated",
		slog.Int64("productID", id),
		slog.Int64("userID", userID),
	)
	return nil
}

// Stats returns the landing page counters.
//
// BEST EFFORT:
// The landing page must render even when the database is down, so any
// error here is logged and turned into zero counts. This is the only place
// a backend error is swallowed.
func (s *ProductService) Stats(ctx context.Context) Stats {
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		s.logger.Warn("stats unavailable", slog.String("error", err.Error()))
		return Stats{}
	}
	active, err := s.products.CountActive(ctx)
	if err != nil {
		s.logger.Warn("stats unavailable", slog.String("error", err.Error()))
		return Stats{}
	}

	return Stats{Users: users, ActiveProducts: active}
}

func (s *ProductService) checkOwner(ctx context.Context, userID, id int64) error {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if product.UserID != userID {
		return apperror.Forbidden("product belongs to another user")
	}
	return nil
}

func loadDashboard(ctx context.Context, products repository.ProductRepository, user *model.User) (*Dashboard, error) {
	list, err := products.ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service: listing products for user %d: %w", user.ID, err)
	}

	views := make([]ProductView, 0, len(list))
	for _, p := range list {
		views = append(views, viewOf(p))
	}
	return &Dashboard{User: *user, Products: views}, nil
}

func viewOf(p model.TrackedProduct) ProductView {
	return ProductView{
		TrackedProduct: p,
		Status:         p.PriceStatus(),
		Savings:        p.Savings(),
	}
}
