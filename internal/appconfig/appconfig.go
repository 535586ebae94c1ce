package appconfig

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// String retrieves an environment variable with a default fallback,
// returning def if the variable is unset or empty.
func String(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// MustString retrieves a required environment variable, terminating the
// process via log.Fatal if it is unset or empty.
func MustString(log *zap.Logger, k string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	log.Fatal("missing required environment variable", zap.String("var", k))
	return ""
}

// Duration retrieves an environment variable parsed as a time.Duration,
// falling back to def on absence or a malformed value. A malformed value
// is logged at Warn rather than failing the process.
func Duration(log *zap.Logger, k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("ignoring malformed duration env var, using default",
			zap.String("var", k), zap.String("value", v), zap.Duration("default", def))
		return def
	}
	return parsed
}

// Int retrieves an environment variable parsed as an int, falling back
// to def on absence or a malformed value.
func Int(log *zap.Logger, k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring malformed int env var, using default",
			zap.String("var", k), zap.String("value", v), zap.Int("default", def))
		return def
	}
	return parsed
}
