// Package genai calls a generative-text provider and returns the raw reply.
// Two backends are supported: Gemini's generateContent REST endpoint and any
// OpenAI-compatible chat completions endpoint.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/agroclima-service/internal/circuitbreaker"
	"github.com/kjstillabower/agroclima-service/internal/client"
	"github.com/kjstillabower/agroclima-service/internal/observability"
)

// ErrEmptyResponse is returned when the provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// TextGenerator produces a text completion for a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// Config selects and configures the backend.
type Config struct {
	Provider string // "gemini" or "openai"
	APIKey   string
	URL      string
	Model    string
	Timeout  time.Duration
}

type backend interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Client applies the per-call timeout, the optional circuit breaker and
// metrics around a backend. A call is a single attempt.
type Client struct {
	provider string
	timeout  time.Duration
	backend  backend
	breaker  *circuitbreaker.CircuitBreaker
}

// New builds the Client for cfg.Provider.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: AI API key is required", client.ErrInvalidAPIKey)
	}
	if cfg.Model == "" {
		return nil, errors.New("AI model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	var b backend
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		cfg.Provider = "gemini"
		b = newGeminiClient(cfg)
	case "openai":
		b = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
	return &Client{provider: cfg.Provider, timeout: cfg.Timeout, backend: b}, nil
}

// SetCircuitBreaker makes calls fail fast while the provider is unhealthy.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	call := func() error {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		out, err := c.backend.generate(callCtx, prompt)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyResponse
		}
		status := callStatus(err)
		observability.AICallsTotal.WithLabelValues(c.provider, status).Inc()
		observability.AIDuration.WithLabelValues(c.provider, status).Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s request timeout: %w", c.provider, err)
			}
			return err
		}
		text = out
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues("ai_api", string(client.CategorizeError(err))).Inc()
		return "", err
	}
	return text, nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, client.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, client.ErrInvalidAPIKey):
		return "client_error"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}

// statusError maps a provider HTTP status to the shared upstream sentinels.
func statusError(provider string, code int, detail string) error {
	detail = strings.TrimSpace(detail)
	if len(detail) > 256 {
		detail = detail[:256]
	}
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%w: %s HTTP %d", client.ErrInvalidAPIKey, provider, code)
	case code == 429:
		return fmt.Errorf("%w: %s", client.ErrRateLimited, provider)
	default:
		return fmt.Errorf("%w: %s HTTP %d: %s", client.ErrUpstreamFailure, provider, code, detail)
	}
}

func extractCorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value("correlation_id").(string); ok {
		return v
	}
	return ""
}
