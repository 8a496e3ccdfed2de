package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejects
// requests so that a struggling model endpoint does not back up every chat
// request behind it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trips the
	// circuit (default: 3).
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing test
	// requests (default: 30s).
	Timeout time.Duration

	// HalfOpenMaxRequests is the number of test requests allowed while
	// half-open (default: 2).
	HalfOpenMaxRequests uint32
}

// Breaker wraps gobreaker around reply generation. Closed passes requests
// through; MaxFailures consecutive failures open the circuit; after
// Timeout the breaker goes half-open and lets test requests decide.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker creates a circuit breaker with default tuning.
func NewBreaker() *Breaker {
	return NewBreakerWithConfig(BreakerConfig{})
}

// NewBreakerWithConfig creates a circuit breaker with custom tuning.
// Zero-valued fields fall back to the defaults.
func NewBreakerWithConfig(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = 2
	}

	settings := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	}

	return &Breaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn through the breaker. When the circuit is open it returns
// ErrCircuitOpen immediately without invoking fn. Context cancellation is
// honored before the call is attempted.
func (b *Breaker) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result, err := b.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", ErrCircuitOpen
		}
		return "", err
	}
	return result.(string), nil
}

// State returns "closed", "open", or "half-open".
func (b *Breaker) State() string {
	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
