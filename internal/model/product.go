package model

import "time"

// Price status values, used by the dashboard to colour each product.
const (
	StatusDeal    = "deal"    // at or below target
	StatusClose   = "close"   // within 10% above target
	StatusHigh    = "high"    // more than 10% above target
	StatusNeutral = "neutral" // a price is missing
)

// closeMargin is how far above target still counts as "close".
const closeMargin = 1.1

// TrackedProduct is an item a user asked the bot to watch.
//
// Prices are pointers because either can be unknown: the scraper may not
// have run yet, or the user never set a target. IsActive is false after a
// soft delete; the row stays for price history.
type TrackedProduct struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	CurrentPrice *float64  `json:"currentPrice"`
	TargetPrice  *float64  `json:"targetPrice"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PriceStatus compares the current price to the target.
func (p *TrackedProduct) PriceStatus() string {
	return PriceStatus(p.CurrentPrice, p.TargetPrice)
}

// Savings is current minus target, or nil when either price is missing or zero.
// Negative means the product is already below target.
func (p *TrackedProduct) Savings() *float64 {
	if p.CurrentPrice == nil || p.TargetPrice == nil || *p.CurrentPrice == 0 || *p.TargetPrice == 0 {
		return nil
	}
	s := *p.CurrentPrice - *p.TargetPrice
	return &s
}

// PriceStatus classifies a current price against a target price.
func PriceStatus(current, target *float64) string {
	if current == nil || target == nil {
		return StatusNeutral
	}
	switch {
	case *current <= *target:
		return StatusDeal
	case *current <= *target*closeMargin:
		return StatusClose
	default:
		return StatusHigh
	}
}

// PricePoint is one observation from the price scraper.
type PricePoint struct {
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recordedAt"`
}
