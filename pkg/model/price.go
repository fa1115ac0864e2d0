package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceOverride is a flat price that replaces rate-based pricing.
// A nil Date makes it a standing rule for every date, a nil ExpiresAt makes it never expire.
type PriceOverride struct {
	Base
	CourtID       string          `json:"court_id"`
	Date          *Date           `json:"date,omitempty"`
	AdjustedPrice decimal.Decimal `json:"adjusted_price"`
	Reason        string          `json:"reason,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// AppliesTo reports whether the override covers date and has not expired at now.
func (po PriceOverride) AppliesTo(date Date, now time.Time) bool {
	if po.Date != nil && !po.Date.Equal(date) {
		return false
	}

	return po.ExpiresAt == nil || po.ExpiresAt.After(now)
}
