// Package resilience provides bounded waiting primitives.
package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned when the condition never became true within the
// configured window.
var ErrPollTimeout = errors.New("poll timed out")

// PollConfig bounds a wait-and-repoll loop.
type PollConfig struct {
	// InitialDelay is slept once before the first check.
	InitialDelay time.Duration
	// Interval between checks.
	Interval time.Duration
	// Timeout caps the total wait, measured after InitialDelay.
	Timeout time.Duration
}

// Poll sleeps InitialDelay, then calls fn every Interval until it returns
// true, the timeout elapses, or ctx is cancelled. It never blocks
// unboundedly: the worst case is InitialDelay + Timeout.
//
// fn errors abort the loop and are returned as-is.
func Poll(ctx context.Context, cfg PollConfig, fn func() (bool, error)) error {
	if cfg.Interval <= 0 {
		cfg.Interval = 40 * time.Millisecond
	}

	if cfg.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.InitialDelay):
		}
	}

	deadline := time.Now().Add(cfg.Timeout)
	for {
		done, err := fn()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if cfg.Timeout > 0 && !time.Now().Before(deadline) {
			return ErrPollTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
