// Package seed fills a store with demo courts and facility facts.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/model"
)

// words used for generating courts' names
var (
	surfaces    = []string{"Hard", "Clay", "Grass", "Carpet", "Parquet"}
	sports      = []string{"Tennis", "Badminton", "Padel", "Squash", "Volleyball"}
	maintainers = []string{"facility", "maintenance", "events"}
	reasons     = []string{"Maintenance", "Private event", "Cleaning", "Tournament"}
)

type Options struct {
	Courts int
	Days   int // number of days ahead, starting today, to generate blocks and overrides for
	Now    time.Time
	Rand   *rand.Rand
}

// Generate puts opts.Courts courts into admin. Every court is open 06:00-22:00 and gets one blocked hour
// per day, the opening hour closed by override on the last day and an early-bird price for today.
// All ids are derived from the court and the date ("court-1", "court-1/2025-05-10/block", ...),
// so running it again updates the same records in place.
func Generate(ctx context.Context, admin database.Admin, opts Options) ([]model.Court, error) {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(opts.Now.UnixNano()))
	}

	courts := make([]model.Court, 0, opts.Courts)
	for i := range opts.Courts {
		c := model.Court{
			ID:             fmt.Sprintf("court-%d", i+1),
			Name:           fmt.Sprintf("%s %s #%d", surfaces[rnd.Intn(len(surfaces))], sports[rnd.Intn(len(sports))], i+1),
			OperatingStart: model.NewTimeOfDay(6, 0),
			OperatingEnd:   model.NewTimeOfDay(22, 0),
			BaseRate:       decimal.NewFromInt(int64(100 + 50*rnd.Intn(5))),
			Metadata:       map[string]any{"indoor": rnd.Intn(2) == 0},
		}

		if err := admin.PutCourt(ctx, c); err != nil {
			return nil, fmt.Errorf("can't put court: %w", err)
		}
		courts = append(courts, c)

		if err := generateFacts(ctx, admin, c, opts, rnd); err != nil {
			return nil, err
		}

		slog.Info("court seeded", slog.String("id", c.ID), slog.String("name", c.Name))
	}

	return courts, nil
}

func generateFacts(ctx context.Context, admin database.Admin, c model.Court, opts Options, rnd *rand.Rand) error {
	today := model.DateOf(opts.Now)

	for d := range opts.Days {
		date := model.DateOf(today.AddDate(0, 0, d))

		// a random whole hour between opening and an hour before closing
		hours := int(c.OperatingEnd-c.OperatingStart) / 60
		start := c.OperatingStart + model.TimeOfDay(60*rnd.Intn(hours))

		b := model.BlockedInterval{
			Base:      model.Base{ID: factID(c, date, "block"), CreatedAt: opts.Now},
			CourtID:   c.ID,
			Interval:  model.Interval{Date: date, Start: start, End: start + 60},
			Reason:    reasons[rnd.Intn(len(reasons))],
			CreatedBy: maintainers[rnd.Intn(len(maintainers))],
		}
		if err := admin.PutBlock(ctx, b); err != nil {
			return fmt.Errorf("can't put blocked interval: %w", err)
		}
	}

	// closes the first hour on the last seeded day
	last := model.DateOf(today.AddDate(0, 0, max(opts.Days-1, 0)))
	o := model.AvailabilityOverride{
		Base:        model.Base{ID: factID(c, last, "closed"), CreatedAt: opts.Now},
		CourtID:     c.ID,
		Interval:    model.Interval{Date: last, Start: c.OperatingStart, End: c.OperatingStart + 60},
		IsAvailable: false,
	}
	if err := admin.PutAvailabilityOverride(ctx, o); err != nil {
		return fmt.Errorf("can't put availability override: %w", err)
	}

	expires := opts.Now.Add(24 * time.Hour)
	po := model.PriceOverride{
		Base:          model.Base{ID: factID(c, today, "early-bird"), CreatedAt: opts.Now},
		CourtID:       c.ID,
		Date:          &today,
		AdjustedPrice: c.BaseRate.Mul(decimal.NewFromFloat(0.75)).Round(2),
		Reason:        "early bird",
		ExpiresAt:     &expires,
	}
	if err := admin.PutPriceOverride(ctx, po); err != nil {
		return fmt.Errorf("can't put price override: %w", err)
	}

	return nil
}

func factID(c model.Court, date model.Date, kind string) string {
	return fmt.Sprintf("%s/%s/%s", c.ID, date, kind)
}
