package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"authinfo/internal/storage"
)

type bucket struct {
	tokens float64
	last   time.Time
	fullAt time.Time
}

// Store implements storage.LimiterStore in process memory
type Store struct {
	buckets map[string]*bucket
	mu      sync.Mutex
	config  *storage.LimiterStoreConfig
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewStore creates a new memory store
func NewStore(config *storage.LimiterStoreConfig) *Store {
	if config == nil {
		config = storage.DefaultConfig()
	}

	s := &Store{
		buckets: make(map[string]*bucket),
		config:  config,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go s.cleanup()
	}

	return s
}

// Allow checks if a request is allowed
func (s *Store) Allow(ctx context.Context, key string, limit storage.Limit) (storage.Result, error) {
	return s.AllowN(ctx, key, 1, limit)
}

// AllowN checks if n requests are allowed
func (s *Store) AllowN(_ context.Context, key string, n int, limit storage.Limit) (storage.Result, error) {
	now := s.now()
	perToken := limit.RefillInterval()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		if s.config.MaxEntries > 0 && len(s.buckets) >= s.config.MaxEntries {
			s.evictOldestLocked()
		}
		b = &bucket{tokens: float64(limit.Burst), last: now}
		s.buckets[key] = b
	}

	if elapsed := now.Sub(b.last); elapsed > 0 && perToken > 0 {
		b.tokens = math.Min(float64(limit.Burst), b.tokens+float64(elapsed)/float64(perToken))
	}
	b.last = now

	res := storage.Result{}
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		res.Allowed = true
	} else {
		missing := float64(n) - b.tokens
		res.RetryAfter = time.Duration(math.Ceil(missing * float64(perToken)))
	}
	res.Remaining = int(math.Floor(b.tokens))
	b.fullAt = now.Add(time.Duration((float64(limit.Burst) - b.tokens) * float64(perToken)))

	return res, nil
}

// Reset resets the bucket for a key
func (s *Store) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.buckets, key)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds for the memory store
func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of tracked keys
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Close stops the cleanup loop
func (s *Store) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *Store) cleanup() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.removeFull()
		}
	}
}

// removeFull drops buckets that have refilled completely; a missing bucket
// is equivalent to a full one.
func (s *Store) removeFull() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		if !now.Before(b.fullAt) {
			delete(s.buckets, key)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true

	for key, b := range s.buckets {
		if first || b.last.Before(oldest) {
			oldestKey = key
			oldest = b.last
			first = false
		}
	}

	if !first {
		delete(s.buckets, oldestKey)
	}
}
