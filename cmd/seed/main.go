package main

import (
	"context"
	"log"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/config"
	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/seed"
)

var cfg = config.New()

// Applies the schema and puts demo courts with their blocks and overrides into Postgres.
// Courts are upserted by id, blocks and overrides are added on every run.
func main() {
	t0 := time.Now()
	defer func() { log.Printf("Courts seeded. Elapsed: %s", time.Since(t0)) }()

	cfg.SetupLogger()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("### Can't load time zone: %v", err)
	}

	db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
	if err != nil {
		log.Fatalf("### Can't init database: %v", err)
	}
	defer closeDB()

	ctx := context.Background()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("### Can't migrate database: %v", err)
	}

	store, err := database.NewPostgresStore(db)
	if err != nil {
		log.Fatalf("### Can't init store: %v", err)
	}

	courts, err := seed.Generate(ctx, store, seed.Options{
		Courts: cfg.SeedCourts,
		Days:   cfg.SeedDays,
		Now:    time.Now().In(loc),
	})
	if err != nil {
		log.Fatalf("### Can't seed courts: %v", err)
	}

	log.Printf("%d courts seeded\n", len(courts))
}
