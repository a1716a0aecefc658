package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sakif/dealbot/internal/apperror"
	"github.com/sakif/dealbot/internal/db"
	"github.com/sakif/dealbot/internal/model"
)

const productColumns = `id, user_id, title, url, current_price, target_price, is_active, created_at`

// ListActiveByUser returns a user's active products, newest first.
func (s *Store) ListActiveByUser(ctx context.Context, userID int64) ([]model.TrackedProduct, error) {
	rows, err := s.queryAll(ctx,
		`SELECT `+productColumns+`
		 FROM tracked_products
		 WHERE user_id = ? AND is_active = 1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing products for user %d: %w", userID, err)
	}

	products := make([]model.TrackedProduct, 0, len(rows))
	for i := range rows {
		products = append(products, *scanProduct(&rows[i]))
	}
	return products, nil
}

// GetProduct returns a product by ID whether or not it is active.
func (s *Store) GetProduct(ctx context.Context, id int64) (*model.TrackedProduct, error) {
	row, err := s.queryOne(ctx,
		`SELECT `+productColumns+` FROM tracked_products WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: getting product %d: %w", id, err)
	}
	if row == nil {
		return nil, apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	return scanProduct(row), nil
}

// PriceHistory returns up to limit price points, oldest first.
func (s *Store) PriceHistory(ctx context.Context, productID int64, limit int) ([]model.PricePoint, error) {
	rows, err := s.queryAll(ctx,
		`SELECT price, recorded_at FROM price_history
		 WHERE product_id = ?
		 ORDER BY recorded_at ASC
		 LIMIT ?`,
		productID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: price history for product %d: %w", productID, err)
	}

	points := make([]model.PricePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, model.PricePoint{
			Price:      r.Float64("price"),
			RecordedAt: r.Time("recorded_at"),
		})
	}
	return points, nil
}

// UpdateTargetPrice sets a product's target price.
// Zero rows affected means the product does not exist.
func (s *Store) UpdateTargetPrice(ctx context.Context, id int64, target float64) error {
	n, err := s.exec(ctx,
		`UPDATE tracked_products SET target_price = ? WHERE id = ?`, target, id)
	if err != nil {
		return fmt.Errorf("sqlstore: updating target price of product %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	return nil
}

// Deactivate soft-deletes a product. Deactivating twice is not an error.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	n, err := s.exec(ctx,
		`UPDATE tracked_products SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deactivating product %d: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	return nil
}

// CountActive returns the number of active products across all users.
func (s *Store) CountActive(ctx context.Context) (int64, error) {
	row, err := s.queryOne(ctx,
		`SELECT COUNT(*) AS cnt FROM tracked_products WHERE is_active = 1`)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: counting active products: %w", err)
	}
	if row == nil {
		return 0, nil
	}
	return row.Int64("cnt"), nil
}

func scanProduct(r *db.Row) *model.TrackedProduct {
	p := &model.TrackedProduct{
		ID:        r.Int64("id"),
		UserID:    r.Int64("user_id"),
		Title:     r.String("title"),
		URL:       r.String("url"),
		IsActive:  r.Int64("is_active") == 1,
		CreatedAt: r.Time("created_at"),
	}
	if v, ok := r.NullFloat64("current_price"); ok {
		p.CurrentPrice = &v
	}
	if v, ok := r.NullFloat64("target_price"); ok {
		p.TargetPrice = &v
	}
	return p
}
