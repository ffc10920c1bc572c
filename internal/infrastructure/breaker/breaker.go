// Package breaker guards the read replica against cascading overload.
//
// CLOSED passes calls through. FailureThreshold consecutive failures move
// it to OPEN, where calls are rejected with ErrCircuitOpen without running.
// Once RecoveryTimeout has passed the next call runs as a HALF_OPEN trial:
// success closes the circuit and resets the failure count, failure opens it
// again and restarts the cooldown.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// State names match what operators see in logs and the admin API.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// ErrCircuitOpen is returned, wrapped, when a call is rejected without
// being attempted. Match it with errors.Is or IsOpen.
var ErrCircuitOpen = apperrors.Unavailable(apperrors.CodeCircuitOpen, "circuit breaker is open").Build()

// IsOpen reports whether err is a breaker rejection rather than a failure
// of the guarded call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// Config tunes a breaker.
type Config struct {
	Name             string
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	HalfOpenRequests uint32
}

// DefaultConfig returns the reference replica tuning.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// StateObserver is notified of transitions, for metrics.
type StateObserver interface {
	BreakerState(name string, state State)
}

// Snapshot is the externally visible breaker state.
type Snapshot struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"lastFailureTime,omitempty"`
}

// CircuitBreaker wraps gobreaker with the failure bookkeeping the admin
// surface reports.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	observers   []StateObserver
}

// New creates a breaker. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config, logger *zap.Logger, observers ...StateObserver) *CircuitBreaker {
	def := DefaultConfig(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = "replica"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &CircuitBreaker{
		name:      cfg.Name,
		logger:    logger.Named("breaker").With(zap.String("breaker", cfg.Name)),
		observers: observers,
	}
	threshold := cfg.FailureThreshold
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("Circuit breaker state changed",
				zap.String("from", string(fromGobreaker(from))),
				zap.String("to", string(fromGobreaker(to))),
			)
			for _, o := range b.observers {
				o.BreakerState(name, fromGobreaker(to))
			}
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the replica's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	for _, o := range observers {
		o.BreakerState(cfg.Name, StateClosed)
	}
	return b
}

// Execute runs fn unless the circuit is open. fn's error is returned
// unchanged; a rejection returns an error wrapping ErrCircuitOpen.
func (b *CircuitBreaker) Execute(fn func() error) error {
	_, err := Do(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Do is Execute for calls that return a value.
func Do[T any](b *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	v, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, apperrors.Unavailable(apperrors.CodeCircuitOpen, "circuit breaker is open").
			WithResource(b.name).
			WithCause(err).
			Build()
	}
	b.record(err)
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

func (b *CircuitBreaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil || errors.Is(err, context.Canceled) {
		b.failures = 0
		return
	}
	b.failures++
	b.lastFailure = time.Now()
}

// State returns the current state. An OPEN breaker whose cooldown has
// elapsed reports HALF_OPEN.
func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Failures returns the consecutive failure count.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// LastFailure returns when the guarded call last failed.
func (b *CircuitBreaker) LastFailure() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastFailure
}

// Snapshot returns name, state and failure bookkeeping together.
func (b *CircuitBreaker) Snapshot() Snapshot {
	b.mu.Lock()
	failures, last := b.failures, b.lastFailure
	b.mu.Unlock()
	return Snapshot{
		Name:            b.name,
		State:           b.State(),
		Failures:        failures,
		LastFailureTime: last,
	}
}

// Name returns the protected resource's name.
func (b *CircuitBreaker) Name() string { return b.name }
