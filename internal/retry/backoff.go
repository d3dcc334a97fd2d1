// Package retry provides the exponential backoff the bridge applies
// between failed accept attempts.  The signal library itself never
// retries; the policy lives here, with the caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"vsmsock/config"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError marks a failure that another attempt cannot fix, such
// as accepting on a listener that has been torn down.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that [Backoff.Do] returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked with [Permanent].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff retries an operation with exponentially growing pauses.
type Backoff struct {
	// InitialDelay is the pause after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the pause.
	MaxDelay time.Duration
	// Multiplier grows the pause after every failure.
	Multiplier float64
	// MaxAttempts bounds the number of tries, the first one included.
	// Zero retries until the context is done.
	MaxAttempts int
	// Jitter spreads each pause by ±25%.
	Jitter bool
	// OnRetry, when set, is told about every failure that will be
	// retried and how long Do pauses before the next try.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForAccept returns the backoff used between failed accepts.
func ForAccept(cfg *config.Config) *Backoff {
	initial := cfg.AcceptBackoff
	if initial <= 0 {
		initial = config.DefaultAcceptBackoff
	}
	return &Backoff{
		InitialDelay: initial,
		MaxDelay:     config.DefaultMaxAcceptBackoff,
		Multiplier:   2.0,
		MaxAttempts:  cfg.AcceptRetries,
		Jitter:       true,
	}
}

// Do calls fn until it returns nil, returns a [Permanent] error, runs out
// of attempts, or ctx is done.  attempt starts at 1.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay <= 0 {
		delay = config.DefaultAcceptBackoff
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = config.DefaultMaxAcceptBackoff
	}
	multiplier := b.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(math.Min(float64(delay)*multiplier, float64(maxDelay)))
	}
}

// addJitter spreads d by up to 25% either way, never below 1ms.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) / 4
	j := float64(d) + (rand.Float64()*2-1)*quarter
	return time.Duration(math.Max(j, float64(time.Millisecond)))
}
