package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the number of retries after the first call (0 = no retry)
	MaxAttempts int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay caps the backoff
	MaxDelay time.Duration
	// Multiplier grows the delay after each retry
	Multiplier float64
	// Jitter spreads delays by +/-25%
	Jitter bool
	// Retryable reports whether err is worth another attempt
	Retryable func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		Retryable:    DefaultRetryable,
	}
}

// DefaultRetryable retries everything except context errors and errors
// marked with Permanent.
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var p *permanentError
	return !errors.As(err, &p)
}

// Retrier runs a function with exponential backoff
type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a retrier, filling unset fields from DefaultConfig
func New(config Config) *Retrier {
	def := DefaultConfig()
	if config.MaxAttempts < 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.Multiplier <= 1 {
		config.Multiplier = def.Multiplier
	}
	if config.Retryable == nil {
		config.Retryable = def.Retryable
	}

	return &Retrier{config: config, sleep: sleep}
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	var (
		lastErr  error
		attempts int
	)

	for attempt := 0; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.config.MaxAttempts || !r.config.Retryable(err) {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt+1, delay, err)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	var p *permanentError
	if errors.As(lastErr, &p) {
		return p.err
	}
	return &Error{Err: lastErr, Attempts: attempts}
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		d += (rand.Float64()*2 - 1) * d * 0.25
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Error is returned once the attempts are exhausted
type Error struct {
	Err      error
	Attempts int
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}
