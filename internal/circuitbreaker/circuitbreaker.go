package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker
type State int

const (
	// StateClosed allows calls through
	StateClosed State = iota
	// StateOpen rejects calls until Timeout elapses
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Call while the circuit is open
var ErrOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is how long the circuit stays open before probing
	Timeout time.Duration
	// MaxRequests is the number of probes allowed while half-open
	MaxRequests int
	// OnStateChange is called synchronously after a transition, outside the lock
	OnStateChange func(from, to State)
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
	}
}

// CircuitBreaker counts consecutive failures of a dependency and
// short-circuits calls while it is considered down.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	inFlight    int
	probeOK     int
	openedAt    time.Time
	transitions uint64
}

// New creates a new circuit breaker
func New(config Config) *CircuitBreaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = def.MaxRequests
	}

	return &CircuitBreaker{config: config, now: time.Now}
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.expire()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed. A true result must be followed
// by Success, Failure or Release.
func (cb *CircuitBreaker) Allow() bool {
	cb.expire()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.inFlight < cb.config.MaxRequests {
			cb.inFlight++
			return true
		}
	}
	return false
}

// Success records a successful call
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	from := cb.state
	changed := false

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probeOK++
		if cb.probeOK >= cb.config.MaxRequests {
			changed = cb.setLocked(StateClosed)
		}
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, StateClosed)
	}
}

// Failure records a failed call
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	from := cb.state
	changed := false

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			changed = cb.setLocked(StateOpen)
		}
	case StateHalfOpen:
		changed = cb.setLocked(StateOpen)
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(from, StateOpen)
	}
}

// Release ends an allowed call without an outcome. A half-open probe slot
// is handed back; the failure count is left as it was.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
}

// Call runs fn unless the circuit is open. An error returned after ctx is
// done is the caller giving up, not the dependency failing, so it is
// released rather than counted.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		return ErrOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.Success()
	case ctx.Err() != nil:
		cb.Release()
	default:
		cb.Failure()
	}
	return err
}

// Reset closes the circuit and clears its counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	changed := cb.setLocked(StateClosed)
	cb.failures = 0
	cb.mu.Unlock()

	if changed {
		cb.notify(from, StateClosed)
	}
}

// Stats holds circuit breaker statistics
type Stats struct {
	State       State
	Failures    int
	OpenedAt    time.Time
	Transitions uint64
}

// Stats returns current statistics
func (cb *CircuitBreaker) Stats() Stats {
	cb.expire()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		State:       cb.state,
		Failures:    cb.failures,
		OpenedAt:    cb.openedAt,
		Transitions: cb.transitions,
	}
}

// expire moves an open circuit to half-open once Timeout has passed
func (cb *CircuitBreaker) expire() {
	cb.mu.Lock()
	changed := false
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		changed = cb.setLocked(StateHalfOpen)
	}
	cb.mu.Unlock()

	if changed {
		cb.notify(StateOpen, StateHalfOpen)
	}
}

func (cb *CircuitBreaker) setLocked(to State) bool {
	if cb.state == to {
		return false
	}

	cb.state = to
	cb.transitions++
	cb.inFlight = 0
	cb.probeOK = 0

	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.failures = 0
	}
	return true
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}
