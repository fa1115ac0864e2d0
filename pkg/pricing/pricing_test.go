package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyushaZ/court-booking/pkg/model"
)

var (
	day  = model.NewDate(2025, time.May, 10)
	now  = time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	rate = decimal.RequireFromString("200.00")
)

func interval(startH, startM, endH, endM int) model.Interval {
	return model.Interval{Date: day, Start: model.NewTimeOfDay(startH, startM), End: model.NewTimeOfDay(endH, endM)}
}

func court() model.Court {
	return model.Court{ID: "c1", OperatingStart: model.NewTimeOfDay(6, 0), OperatingEnd: model.NewTimeOfDay(22, 0), BaseRate: rate}
}

func ptr[T any](v T) *T { return &v }

func TestByRate(t *testing.T) {
	tests := []struct {
		rate string
		d    time.Duration
		want string
	}{
		{"200.00", time.Hour, "200.00"},
		{"200.00", 90 * time.Minute, "300.00"},
		{"200.00", 30 * time.Minute, "100.00"},
		{"100.00", 20 * time.Minute, "33.33"},
		{"100.00", 40 * time.Minute, "66.67"},
		{"0.10", 15 * time.Minute, "0.03"}, // 0.025 rounds half up
		{"99.99", 0, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.rate+"/"+tt.d.String(), func(t *testing.T) {
			got := ByRate(decimal.RequireFromString(tt.rate), tt.d)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestResolve_NoOverrides(t *testing.T) {
	price := Resolve(court(), nil, interval(10, 0, 11, 0), now)
	assert.Equal(t, "200.00", price.StringFixed(2))
}

func TestResolve_OverrideIsFlat(t *testing.T) {
	overrides := []model.PriceOverride{{
		Base:          model.Base{CreatedAt: now.Add(-time.Hour)},
		Date:          &day,
		AdjustedPrice: decimal.RequireFromString("150.00"),
		ExpiresAt:     ptr(now.Add(time.Hour)),
	}}

	for _, iv := range []model.Interval{interval(10, 0, 11, 0), interval(10, 0, 12, 30), interval(21, 30, 22, 0)} {
		assert.Equal(t, "150.00", Resolve(court(), overrides, iv, now).StringFixed(2), iv.String())
	}

	t.Run("expired falls back to rate", func(t *testing.T) {
		after := now.Add(time.Hour)
		assert.Equal(t, "200.00", Resolve(court(), overrides, interval(10, 0, 11, 0), after).StringFixed(2))
		assert.Equal(t, "500.00", Resolve(court(), overrides, interval(10, 0, 12, 30), after).StringFixed(2))
	})
}

func TestActive(t *testing.T) {
	other := model.NewDate(2025, time.May, 11)

	standing := model.PriceOverride{Base: model.Base{ID: "standing", CreatedAt: now.Add(-3 * time.Hour)}, AdjustedPrice: decimal.NewFromInt(120)}
	dated := model.PriceOverride{Base: model.Base{ID: "dated", CreatedAt: now.Add(-2 * time.Hour)}, Date: &day, AdjustedPrice: decimal.NewFromInt(150)}
	otherDay := model.PriceOverride{Base: model.Base{ID: "other", CreatedAt: now.Add(-time.Hour)}, Date: &other, AdjustedPrice: decimal.NewFromInt(170)}
	expired := model.PriceOverride{Base: model.Base{ID: "expired", CreatedAt: now.Add(-time.Minute)}, AdjustedPrice: decimal.NewFromInt(10), ExpiresAt: ptr(now)}

	overrides := []model.PriceOverride{standing, dated, otherDay, expired}

	active := Active(overrides, day, now)
	require.NotNil(t, active)
	assert.Equal(t, "dated", active.ID, "the most recent applicable one wins")

	active = Active(overrides, other, now)
	require.NotNil(t, active)
	assert.Equal(t, "other", active.ID)

	active = Active(overrides, model.NewDate(2025, time.May, 12), now)
	require.NotNil(t, active)
	assert.Equal(t, "standing", active.ID)

	// expires_at must be strictly after the evaluation instant
	assert.Nil(t, Active([]model.PriceOverride{expired}, day, now))
	assert.NotNil(t, Active([]model.PriceOverride{expired}, day, now.Add(-time.Nanosecond)))
}

func TestResolve_Deterministic(t *testing.T) {
	overrides := []model.PriceOverride{{
		Base:          model.Base{CreatedAt: now.Add(-time.Hour)},
		AdjustedPrice: decimal.RequireFromString("80.50"),
		ExpiresAt:     ptr(now.Add(time.Hour)),
	}}

	first := Resolve(court(), overrides, interval(9, 0, 10, 45), now)
	second := Resolve(court(), overrides, interval(9, 0, 10, 45), now.Add(30*time.Minute))
	assert.True(t, first.Equal(second))
}
