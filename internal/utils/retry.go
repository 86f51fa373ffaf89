package utils

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Retrier runs an operation up to MaxAttempts times with a fixed delay
// between attempts. There is no backoff growth and no circuit breaking.
type Retrier struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration) // Replaced in tests
	log         zerolog.Logger
}

// NewRetrier creates a retrier. maxAttempts below 1 is treated as 1.
func NewRetrier(maxAttempts int, delay time.Duration, log zerolog.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		Sleep:       time.Sleep,
		log:         log,
	}
}

// Do calls fn until it succeeds or attempts run out, returning the last error.
// A cancelled context stops retrying.
func (r *Retrier) Do(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		if attempt < r.MaxAttempts {
			r.log.Warn().
				Str("operation", operation).
				Int("attempt", attempt).
				Int("max_retries", r.MaxAttempts).
				Err(err).
				Msg("Operation failed, retrying...")
			r.Sleep(r.Delay)
		} else {
			r.log.Debug().
				Str("operation", operation).
				Int("attempt", attempt).
				Err(err).
				Msg("Operation failed after all retries")
		}
	}
	return err
}
