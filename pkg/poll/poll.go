package poll

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrDeadlineExceeded is returned when the condition never settled before
// the polling deadline.
var ErrDeadlineExceeded = errors.New("polling deadline exceeded")

type Config struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	Deadline        time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialInterval: 2 * time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      1.5,
		Jitter:          0.2,
		Deadline:        2 * time.Minute,
	}
}

// Until calls fn with exponential backoff until it reports done, returns an
// error, the context is cancelled, or the deadline passes. Each wait is
// jittered to avoid hammering a congested upstream in lockstep.
func Until(ctx context.Context, cfg Config, fn func(ctx context.Context) (done bool, err error)) error {
	if cfg.InitialInterval <= 0 {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	interval := cfg.InitialInterval
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrDeadlineExceeded
			}
			return ctx.Err()
		case <-time.After(jittered(interval, cfg.Jitter)):
		}

		interval = time.Duration(float64(interval) * cfg.Multiplier)
		if interval > cfg.MaxInterval {
			interval = cfg.MaxInterval
		}
	}
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	delta := (rand.Float64()*2 - 1) * jitter * float64(d)
	return time.Duration(float64(d) + delta)
}
