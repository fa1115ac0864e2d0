package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

const currencyPlaces = 2

var minutesPerHour = decimal.NewFromInt(60)

// Active returns the override in effect for date at now: the most recently created one
// among those that cover date and have not expired. It returns nil if there is none.
func Active(overrides []model.PriceOverride, date model.Date, now time.Time) *model.PriceOverride {
	var active *model.PriceOverride

	for i := range overrides {
		po := &overrides[i]
		if !po.AppliesTo(date, now) {
			continue
		}

		if active == nil || po.CreatedAt.After(active.CreatedAt) {
			active = po
		}
	}

	return active
}

// Resolve returns the charge for reserving iv on court.
// An active override is a flat price for the whole interval, not a rate.
// Otherwise the base hourly rate is applied to the exact duration and rounded half-up to cents.
func Resolve(court model.Court, overrides []model.PriceOverride, iv model.Interval, now time.Time) decimal.Decimal {
	if po := Active(overrides, iv.Date, now); po != nil {
		return po.AdjustedPrice
	}

	return ByRate(court.BaseRate, iv.Duration())
}

// ByRate charges hourly rate for d, rounding half-up at two decimal places.
func ByRate(rate decimal.Decimal, d time.Duration) decimal.Decimal {
	minutes := decimal.NewFromInt(int64(d / time.Minute))
	return rate.Mul(minutes).DivRound(minutesPerHour, currencyPlaces)
}
