// Package circuitbreaker wraps sony/gobreaker for the outbound calls (weather
// provider, generative-text provider). An open breaker fails fast; nothing
// here retries.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Config holds circuit breaker parameters.
type Config struct {
	Component        string
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // probe calls allowed (and required) in half-open
	Timeout          time.Duration // open duration before a probe is allowed
	OnStateChange    func(from, to string)
}

// CircuitBreaker protects one upstream.
type CircuitBreaker struct {
	component string
	cb        *gobreaker.CircuitBreaker
}

// New creates a CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := uint32(cfg.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        cfg.Component,
		MaxRequests: uint32(cfg.SuccessThreshold),
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// A caller that went away says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if cfg.OnStateChange != nil {
		notify := cfg.OnStateChange
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			notify(from.String(), to.String())
		}
	}
	return &CircuitBreaker{component: cfg.Component, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Call runs fn when the circuit allows it and records the outcome.
func (c *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, c.component)
	}
	return err
}

// State returns "closed", "open" or "half-open".
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}
