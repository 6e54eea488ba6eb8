// Package timeouts provides centralized timeout values for store and
// notification calls.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads and conditional updates
//   - Medium: list queries and console refreshes
//   - Long: sweeps and reconciliation passes
//   - Notify: one outbound email
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 60 * time.Second
	DefaultNotify = 20 * time.Second
)

var mu sync.RWMutex

var current = Config{
	Ping:   DefaultPing,
	Short:  DefaultShort,
	Medium: DefaultMedium,
	Long:   DefaultLong,
	Notify: DefaultNotify,
}

// Config holds timeout configuration values.
// Zero values are ignored (defaults are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Notify time.Duration
}

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(current)
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }
func Notify() time.Duration { return get(func(c Config) time.Duration { return c.Notify }) }

// Configure overrides the non-zero values in cfg. Call it during startup,
// before handlers and workers are built.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Notify > 0 {
		current.Notify = cfg.Notify
	}
}

// Reset restores all timeouts to their default values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = Config{
		Ping:   DefaultPing,
		Short:  DefaultShort,
		Medium: DefaultMedium,
		Long:   DefaultLong,
		Notify: DefaultNotify,
	}
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context was canceled due to deadline exceeded.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), log, "expiration sweep")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
