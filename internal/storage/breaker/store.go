package breaker

import (
	"context"

	"authinfo/internal/circuitbreaker"
	"authinfo/internal/storage"
)

// Store guards a remote LimiterStore with a circuit breaker. While the
// circuit is open, Allow and Reset fail fast with circuitbreaker.ErrOpen
// instead of waiting on an unreachable backend. Ping is passed through so
// health checks keep reporting the backend's real state.
type Store struct {
	next storage.LimiterStore
	cb   *circuitbreaker.CircuitBreaker
}

// New wraps next with cb
func New(next storage.LimiterStore, cb *circuitbreaker.CircuitBreaker) *Store {
	return &Store{next: next, cb: cb}
}

// Allow checks if a request is allowed
func (s *Store) Allow(ctx context.Context, key string, limit storage.Limit) (storage.Result, error) {
	return s.AllowN(ctx, key, 1, limit)
}

// AllowN checks if n requests are allowed
func (s *Store) AllowN(ctx context.Context, key string, n int, limit storage.Limit) (storage.Result, error) {
	var res storage.Result
	err := s.cb.Call(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.next.AllowN(ctx, key, n, limit)
		return err
	})
	return res, err
}

// Reset resets the bucket for a key
func (s *Store) Reset(ctx context.Context, key string) error {
	return s.cb.Call(ctx, func(ctx context.Context) error {
		return s.next.Reset(ctx, key)
	})
}

// Ping checks the wrapped backend directly
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close closes the wrapped store
func (s *Store) Close() error {
	return s.next.Close()
}

// Breaker returns the circuit breaker guarding the store
func (s *Store) Breaker() *circuitbreaker.CircuitBreaker {
	return s.cb
}
