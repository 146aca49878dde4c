package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(r *Retrier, waits *[]time.Duration) {
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestRetrier_Do(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		r := New(Config{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond})

		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt, got: %d", attempts)
		}
	})

	t.Run("success after retry", func(t *testing.T) {
		r := New(Config{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond})
		var waits []time.Duration
		noSleep(r, &waits)

		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary error")
			}
			return nil
		})

		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if attempts != 3 {
			t.Errorf("Expected 3 attempts, got: %d", attempts)
		}
		if len(waits) != 2 {
			t.Errorf("Expected 2 waits, got: %d", len(waits))
		}
	})

	t.Run("exhausted retries", func(t *testing.T) {
		r := New(Config{MaxAttempts: 2, InitialDelay: 10 * time.Millisecond})
		var waits []time.Duration
		noSleep(r, &waits)

		testErr := errors.New("persistent error")
		err := r.Do(context.Background(), func(ctx context.Context) error {
			return testErr
		})

		var retryErr *Error
		if !errors.As(err, &retryErr) {
			t.Fatalf("Expected retry error, got: %v", err)
		}
		if retryErr.Attempts != 3 {
			t.Errorf("Expected 3 attempts, got: %d", retryErr.Attempts)
		}
		if !errors.Is(err, testErr) {
			t.Error("Expected error to wrap original error")
		}
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		r := New(Config{MaxAttempts: 5})
		var waits []time.Duration
		noSleep(r, &waits)

		testErr := errors.New("bad password")
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return Permanent(testErr)
		})

		if err != testErr {
			t.Errorf("Expected unwrapped permanent error, got: %v", err)
		}
		if attempts != 1 || len(waits) != 0 {
			t.Errorf("attempts = %d, waits = %d", attempts, len(waits))
		}
	})

	t.Run("context cancelled while waiting", func(t *testing.T) {
		r := New(Config{MaxAttempts: 5, InitialDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())

		err := r.Do(ctx, func(ctx context.Context) error {
			cancel()
			return errors.New("fail")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", err)
		}
	})

	t.Run("on retry callback", func(t *testing.T) {
		var seen []int
		r := New(Config{
			MaxAttempts: 2,
			OnRetry: func(attempt int, _ time.Duration, _ error) {
				seen = append(seen, attempt)
			},
		})
		var waits []time.Duration
		noSleep(r, &waits)

		_ = r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})

		if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
			t.Errorf("OnRetry attempts = %v", seen)
		}
	})
}

func TestRetrier_Delay(t *testing.T) {
	r := New(Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := r.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetrier_DelayJitter(t *testing.T) {
	r := New(Config{InitialDelay: 100 * time.Millisecond, Multiplier: 2, Jitter: true})

	for i := 0; i < 100; i++ {
		d := r.delay(0)
		if d < 75*time.Millisecond || d > 125*time.Millisecond {
			t.Fatalf("jittered delay %v outside +/-25%%", d)
		}
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"generic", errors.New("x"), true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("x")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryable(tt.err); got != tt.want {
				t.Errorf("DefaultRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
