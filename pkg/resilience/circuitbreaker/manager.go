// Package circuitbreaker guards outbound calls (identity providers, the
// roles source) with sony/gobreaker so a dead upstream fails fast instead
// of stalling every login callback for a full timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/dzerik/swa-emulator/pkg/logger"
)

// ErrOpen is returned while a breaker refuses calls.
var ErrOpen = errors.New("circuit breaker is open")

// Rejected marks err as the upstream refusing this particular request (an
// invalid code, a 4xx answer). The error still reaches the caller but does
// not count toward opening the breaker.
func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return rejectedError{err: err}
}

// IsRejected reports whether err was marked with Rejected.
func IsRejected(err error) bool {
	var r rejectedError
	return errors.As(err, &r)
}

type rejectedError struct{ err error }

func (e rejectedError) Error() string { return e.err.Error() }
func (e rejectedError) Unwrap() error { return e.err }

// State represents the circuit breaker state.
type State = gobreaker.State

// States
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Config holds circuit breaker configuration.
type Config struct {
	// Enabled turns breakers on. When false calls go straight through.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Default applies to every breaker without its own entry.
	Default Settings `yaml:"default" mapstructure:"default"`
	// Services overrides settings per breaker name, e.g. "idp.github".
	Services map[string]Settings `yaml:"services" mapstructure:"services"`
}

// Settings holds settings for a single circuit breaker.
type Settings struct {
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold uint32        `yaml:"success_threshold" mapstructure:"success_threshold"`
}

// DefaultConfig returns default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Default: Settings{
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
			SuccessThreshold: 2,
		},
		Services: make(map[string]Settings),
	}
}

// Manager hands out one breaker per upstream name.
type Manager struct {
	cfg      Config
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewManager creates a new circuit breaker manager.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Enabled reports whether calls are guarded at all.
func (m *Manager) Enabled() bool {
	return m != nil && m.cfg.Enabled
}

func (m *Manager) get(name string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok = m.breakers[name]; ok {
		return cb
	}

	settings := m.cfg.Default
	if s, ok := m.cfg.Services[name]; ok {
		settings = s
	}
	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up or a refused request is not the upstream's fault
			return err == nil || errors.Is(err, context.Canceled) || IsRejected(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	m.breakers[name] = cb
	return cb
}

// Execute runs fn under the breaker registered for name. A nil or disabled
// manager runs fn directly.
func Execute[T any](ctx context.Context, m *Manager, name string, fn func(context.Context) (T, error)) (T, error) {
	if !m.Enabled() {
		return fn(ctx)
	}

	res, err := m.get(name).Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		return zero, err
	}
	return res.(T), nil
}

// State returns the current state of the named breaker.
func (m *Manager) State(name string) State {
	return m.get(name).State()
}

// States snapshots every breaker created so far, keyed by name.
func (m *Manager) States() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]string, len(m.breakers))
	for name, cb := range m.breakers {
		states[name] = cb.State().String()
	}
	return states
}
