package config

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/IlyushaZ/court-booking/pkg/database"
	"github.com/IlyushaZ/court-booking/pkg/events"
	"github.com/IlyushaZ/court-booking/pkg/lock"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	LockerLocal = "local"
	LockerRedis = "redis"
)

type Config struct {
	LogLevel   string
	ListenAddr string
	TimeZone   string // IANA name of the facility's time zone

	Storage          string // memory or postgres
	PostgresAddr     string // Postgres address in host[:port] format
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	RedisAddr     string // Redis address in host[:port] format
	RedisUser     string // Redis user
	RedisPassword string // Redis password

	Locker      string // local or redis
	LockTimeout time.Duration
	LeaseTTL    time.Duration

	CacheAvailability bool // whether to keep availability answers in redis
	AvailabilityTTL   time.Duration

	LimiterFailOpen bool
	CreateLimit     int // create attempts per requester per hour, 0 disables the limiter

	DispatchInterval  time.Duration
	DispatchBatchSize int
	AMQPURL           string // empty makes events go to the log
	AMQPExchange      string

	OTLPEndpoint string // empty disables tracing

	// Completer params
	CompleteBatchSize int

	// Seed params
	SeedCourts int
	SeedDays   int
}

func New() *Config {
	c := &Config{}

	flag.StringVar(&c.LogLevel, "logLevel", LookupEnvString("LOG_LEVEL", "DEBUG"), "Set log level: DEBUG, INFO, WARN, ERROR.")
	flag.StringVar(&c.ListenAddr, "listenAddr", LookupEnvString("LISTEN_ADDR", ":8000"), `Address in form of "[host]:port" that HTTP server should be listening on.`)
	flag.StringVar(&c.TimeZone, "timeZone", LookupEnvString("TIME_ZONE", "UTC"), `Facility's time zone, e.g. "Europe/Moscow". Dates and reservation ends are evaluated in it.`)

	flag.StringVar(&c.Storage, "storage", LookupEnvString("STORAGE", StoragePostgres), "Where to keep reservations: postgres or memory (single instance, lost on restart).")
	flag.StringVar(&c.PostgresAddr, "postgresAddr", LookupEnvString("POSTGRES_ADDR", "127.0.0.1:5432"), "Set PostgreSQL address as host:port, where port is optional (without TLS).")
	flag.StringVar(&c.PostgresDB, "postgresDB", LookupEnvString("POSTGRES_DB", "courtbooking"), "Set PostgreSQL DB.")
	flag.StringVar(&c.PostgresUser, "postgresUser", LookupEnvString("POSTGRES_USER", "develop"), "Set PostgreSQL user.")
	flag.StringVar(&c.PostgresPassword, "postgresPassword", LookupEnvString("POSTGRES_PASSWORD", "develop"), "Set PostgreSQL password.")

	flag.StringVar(&c.RedisAddr, "redisAddr", LookupEnvString("REDIS_ADDR", "127.0.0.1:6379"), "Redis address in host[:port] format.")
	flag.StringVar(&c.RedisUser, "redisUser", LookupEnvString("REDIS_USER", ""), "Redis user.")
	flag.StringVar(&c.RedisPassword, "redisPassword", LookupEnvString("REDIS_PASSWORD", ""), "Redis password.")

	flag.StringVar(&c.Locker, "locker", LookupEnvString("LOCKER", LockerLocal), "Per-court lock: local (in-process) or redis (shared by all instances).")
	flag.DurationVar(&c.LockTimeout, "lockTimeout", LookupEnvDuration("LOCK_TIMEOUT", database.DefaultLockTimeout), "How long a reservation attempt may wait for the court before failing as busy, non-positive means the default.")
	flag.DurationVar(&c.LeaseTTL, "leaseTTL", LookupEnvDuration("LEASE_TTL", lock.DefaultLeaseTTL), "Expiration of redis court leases left behind by crashed instances.")

	flag.BoolVar(&c.CacheAvailability, "cacheAvailability", LookupEnvBool("CACHE_AVAILABILITY", false), "Set to cache availability answers in redis.")
	flag.DurationVar(&c.AvailabilityTTL, "availabilityTTL", LookupEnvDuration("AVAILABILITY_TTL", 30*time.Second), "How long cached availability answers live.")

	flag.BoolVar(&c.LimiterFailOpen, "limiterFailOpen", LookupEnvBool("LIMITER_FAIL_OPEN", false), "Set to make limiter allow request if failed to check limits.")
	flag.IntVar(&c.CreateLimit, "createLimit", LookupEnvInt("CREATE_LIMIT", 0), "Number of reservation attempts a requester can make per hour, 0 means unlimited.")

	flag.DurationVar(&c.DispatchInterval, "dispatchInterval", LookupEnvDuration("DISPATCH_INTERVAL", events.DefaultInterval), "How often the outbox is polled for events.")
	flag.IntVar(&c.DispatchBatchSize, "dispatchBatchSize", LookupEnvInt("DISPATCH_BATCH_SIZE", events.DefaultBatchSize), "Number of events published per outbox round.")
	flag.StringVar(&c.AMQPURL, "amqpURL", LookupEnvString("AMQP_URL", ""), "RabbitMQ URL. If empty, events are written to the log.")
	flag.StringVar(&c.AMQPExchange, "amqpExchange", LookupEnvString("AMQP_EXCHANGE", "reservations"), "Topic exchange events are published to.")

	flag.StringVar(&c.OTLPEndpoint, "otlpEndpoint", LookupEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP/HTTP collector endpoint. If empty, tracing is disabled.")

	flag.IntVar(&c.CompleteBatchSize, "completeBatchSize", LookupEnvInt("COMPLETE_BATCH_SIZE", 500), "Max number of reservations completed per run (only for completer).")

	flag.IntVar(&c.SeedCourts, "seedCourts", LookupEnvInt("SEED_COURTS", 4), "Number of courts to generate (only for seed).")
	flag.IntVar(&c.SeedDays, "seedDays", LookupEnvInt("SEED_DAYS", 7), "Number of days ahead to generate blocks and overrides for (only for seed).")

	flag.Parse()

	c.LockTimeout = database.BoundLockTimeout(c.LockTimeout)

	return c
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

func ParseLogLevel(lvl string) slog.Level {
	switch lvl {
	case slog.LevelDebug.String():
		return slog.LevelDebug
	case slog.LevelInfo.String():
		return slog.LevelInfo
	case slog.LevelWarn.String():
		return slog.LevelWarn
	case slog.LevelError.String():
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// SetupLogger makes a JSON logger writing to stdout the default one.
func (c *Config) SetupLogger() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(c.LogLevel)}))
	slog.SetDefault(logger)
}
