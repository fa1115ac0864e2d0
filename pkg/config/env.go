package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Lookup helpers fall back to def when the variable is unset or malformed. Malformed values are logged.

func LookupEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func LookupEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid bool in environment, using default", slog.String("key", key), slog.String("value", v))
		return def
	}
	return b
}

func LookupEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int in environment, using default", slog.String("key", key), slog.String("value", v))
		return def
	}
	return i
}

func LookupEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", slog.String("key", key), slog.String("value", v))
		return def
	}
	return d
}
