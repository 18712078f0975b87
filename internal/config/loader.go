// Package config provides fail-open environment-variable loading shared by
// every stage's configuration struct: a missing or invalid value never
// aborts startup, it falls back to a documented default and logs a warning.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadResult records whether a loaded value is an env override or a
// fallback default, and carries any warning produced along the way. Stages
// surface Warnings on their config-load log line so a misconfigured
// deployment is visible without being fatal.
type LoadResult struct {
	Value           any
	Warnings        []string
	FallbackApplied bool
}

// String loads a plain string env var with no validation.
func String(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// StringWithFallback loads a string env var, validating it with validator.
// An empty env var is treated as absent (default, no warning). A validation
// failure falls back to the default and logs a warning.
func StringWithFallback(key, defaultValue string, validator func(string) error) LoadResult {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult{Value: defaultValue}
	}
	if validator != nil {
		if err := validator(raw); err != nil {
			warn := fmt.Sprintf("invalid %s=%q: %v, falling back to %q", key, raw, err, defaultValue)
			slog.Warn("config fallback applied", slog.String("key", key), slog.String("value", raw), slog.String("error", err.Error()))
			return LoadResult{Value: defaultValue, Warnings: []string{warn}, FallbackApplied: true}
		}
	}
	return LoadResult{Value: raw}
}

// Int loads an integer env var, falling back and warning on parse failure.
func Int(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer env var, using default",
			slog.String("key", key), slog.String("value", raw), slog.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

// IntRange loads an integer env var that must lie within [min, max];
// out-of-range or unparseable values are not clamped but fall back to
// defaultValue with a warning.
func IntRange(key string, defaultValue, min, max int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		slog.Warn("integer env var out of range, using default",
			slog.String("key", key), slog.String("value", raw),
			slog.Int("min", min), slog.Int("max", max), slog.Int("default", defaultValue))
		return defaultValue
	}
	return v
}

// Float loads a float64 env var, falling back and warning on parse failure.
func Float(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("invalid float env var, using default",
			slog.String("key", key), slog.String("value", raw), slog.Float64("default", defaultValue))
		return defaultValue
	}
	return v
}

// Bool loads a boolean env var. Accepted true values: 1,t,T,true,TRUE,True.
// Accepted false values: 0,f,F,false,FALSE,False. Anything else falls back.
func Bool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	switch raw {
	case "1", "t", "T", "true", "TRUE", "True":
		return true
	case "0", "f", "F", "false", "FALSE", "False":
		return false
	default:
		slog.Warn("invalid boolean env var, using default",
			slog.String("key", key), slog.String("value", raw), slog.Bool("default", defaultValue))
		return defaultValue
	}
}

// Duration loads a time.Duration env var parsed by time.ParseDuration.
func Duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration env var, using default",
			slog.String("key", key), slog.String("value", raw), slog.Duration("default", defaultValue))
		return defaultValue
	}
	return v
}

// DurationRange loads a duration that must lie within [min, max]; values
// outside that range are not clamped but fall back to defaultValue with a
// warning.
func DurationRange(key string, defaultValue, min, max time.Duration) time.Duration {
	v := Duration(key, defaultValue)
	if v < min || v > max {
		slog.Warn("duration env var out of range, using default",
			slog.String("key", key), slog.Duration("value", v),
			slog.Duration("min", min), slog.Duration("max", max), slog.Duration("default", defaultValue))
		return defaultValue
	}
	return v
}

// StringList loads a comma-separated list, trimming whitespace and dropping
// empty entries. Falls back to defaultValue if the result would be empty.
func StringList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
