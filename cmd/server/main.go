package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/IlyushaZ/court-booking/pkg/cache"
	"github.com/IlyushaZ/court-booking/pkg/config"
	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/events"
	"github.com/IlyushaZ/court-booking/pkg/limiter"
	"github.com/IlyushaZ/court-booking/pkg/lock"
	"github.com/IlyushaZ/court-booking/pkg/seed"
	"github.com/IlyushaZ/court-booking/pkg/server"
	"github.com/IlyushaZ/court-booking/pkg/service"
	"github.com/IlyushaZ/court-booking/pkg/tracing"
)

const (
	gracefulTimeout = time.Second * 15
	serviceName     = "court-booking"
)

func main() {
	cfg := config.New()
	cfg.SetupLogger()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("### Can't load time zone: %v", err)
	}
	clock := service.RealClock{Location: loc}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("### Can't init tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	store, outbox, closeStore, err := openStorage(ctx, cfg, clock)
	if err != nil {
		log.Fatalf("### Can't init storage: %v", err)
	}
	defer closeStore()

	var rdb *redis.Client
	if cfg.Locker == config.LockerRedis || cfg.CacheAvailability || cfg.CreateLimit > 0 {
		var closeRedis func() error
		rdb, closeRedis, err = cache.NewRedis(cfg.RedisAddr, cfg.RedisUser, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("### Can't init redis: %v", err)
		}
		defer closeRedis()
	}

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		log.Fatalf("### Can't init publisher: %v", err)
	}
	defer closePublisher()

	dispatcher := events.NewDispatcher(outbox, publisher, cfg.DispatchInterval, cfg.DispatchBatchSize)

	reservationSvc, availabilitySvc := composeServices(store, rdb, dispatcher, clock, cfg)

	srv, err := server.New(cfg.ListenAddr, reservationSvc, availabilitySvc)
	if err != nil {
		log.Fatalf("### Can't create server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info(fmt.Sprintf("HTTP server listening at %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("can't listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
		defer cancel()

		return srv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg *config.Config, clock service.Clock) (database.Store, database.Outbox, func() error, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		ms := database.NewMemoryStore()

		// an empty in-memory store is useless, so it starts with demo courts
		_, err := seed.Generate(ctx, ms, seed.Options{Courts: cfg.SeedCourts, Days: cfg.SeedDays, Now: clock.Now()})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("can't seed memory store: %w", err)
		}

		return ms, ms, func() error { return nil }, nil

	case config.StoragePostgres:
		db, closeDB, err := database.New(cfg.PostgresAddr, cfg.PostgresDB, cfg.PostgresUser, cfg.PostgresPassword)
		if err != nil {
			return nil, nil, nil, err
		}

		if err := database.Migrate(ctx, db); err != nil {
			_ = closeDB()
			return nil, nil, nil, err
		}

		ps, err := database.NewPostgresStore(db)
		if err != nil {
			_ = closeDB()
			return nil, nil, nil, err
		}

		return ps, ps, closeDB, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func newPublisher(cfg *config.Config) (events.Publisher, func() error, error) {
	if cfg.AMQPURL == "" {
		slog.Warn("no AMQP URL configured, events will be written to the log")
		return events.LogPublisher{}, func() error { return nil }, nil
	}

	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func composeServices(
	store database.Store,
	rdb *redis.Client,
	dispatcher *events.Dispatcher,
	clock service.Clock,
	cfg *config.Config,
) (reservation service.Reservation, availability service.Availability) {
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Locker == config.LockerRedis {
		locker = &lock.RedisLease{Redis: rdb, TTL: cfg.LeaseTTL}
	}

	generic := &service.ReservationGeneric{
		Store:       store,
		Locker:      locker,
		Clock:       clock,
		LockTimeout: cfg.LockTimeout,
		AfterCommit: []service.CommitHook{dispatcher.Notify},
	}

	availability = &service.AvailabilityGeneric{Store: store}

	if cfg.CacheAvailability {
		caching := &service.AvailabilityCaching{Availability: availability, Redis: rdb, TTL: cfg.AvailabilityTTL}
		generic.AfterCommit = append(generic.AfterCommit, caching.Invalidate)
		availability = caching
	}

	reservation = generic

	if cfg.CreateLimit > 0 {
		reservation = &service.ReservationLimiting{
			Reservation: reservation,
			Limiter:     &limiter.Limiter{Redis: rdb, Limit: cfg.CreateLimit},
			FailOpen:    cfg.LimiterFailOpen,
		}
	}

	reservation = &service.ReservationMetrics{Reservation: reservation}
	reservation = &service.ReservationTracing{Reservation: reservation}
	reservation = &service.ReservationLogging{Reservation: reservation}

	return
}
