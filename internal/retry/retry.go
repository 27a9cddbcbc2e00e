// Package retry runs a single upstream call with capped exponential backoff.
// Retries never cross stage boundaries: a Policy governs one call's attempt loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Outcome classifies the result of one attempt.
type Outcome int

const (
	OK        Outcome = iota
	Transient         // rate limited / unavailable: sleep and retry
	Empty             // valid zero-result answer, not an error
	Permanent         // give up on this unit
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Transient:
		return "transient"
	case Empty:
		return "empty"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrEmpty is returned by Do when the call classified as Empty.
var ErrEmpty = errors.New("no data")

// ExhaustedError indicates every attempt returned a transient failure.
type ExhaustedError struct {
	Attempts  int
	LastError error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// IsExhausted reports whether err came from running out of attempts.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// Policy configures one retrying call.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first (default 5).
	MaxAttempts int
	// Base is the delay before the first retry (default 1s).
	Base time.Duration
	// Max caps every delay (default 60s).
	Max time.Duration
	// Classify maps an attempt's error to an Outcome. nil error is always OK.
	Classify func(err error) Outcome
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default returns the upstream API policy: min(60, 2^attempt) seconds, 5 attempts.
func Default() Policy {
	return Policy{MaxAttempts: 5, Base: time.Second, Max: 60 * time.Second}
}

// Delay returns the backoff before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	base, ceiling := p.Base, p.Max
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = 60 * time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// Do calls fn until it succeeds, returns a non-transient outcome, or the
// attempt ceiling is reached.
func Do[T any](ctx context.Context, p Policy, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	classify := p.Classify
	if classify == nil {
		classify = func(error) Outcome { return Permanent }
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		switch classify(err) {
		case Empty:
			return zero, fmt.Errorf("%w: %v", ErrEmpty, err)
		case Transient:
			lastErr = err
		default:
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry interrupted: %w", serr)
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, LastError: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
