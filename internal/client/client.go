package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/agroclima-service/internal/circuitbreaker"
	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/observability"
)

// WeatherClient fetches a daily forecast for a coordinate pair.
type WeatherClient interface {
	GetForecast(ctx context.Context, lat, lon float64) (models.Forecast, error)
}

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
)

// VisualCrossingClient calls the Visual Crossing Timeline API. Each call is a
// single attempt bounded by timeout; failures are returned, never retried.
type VisualCrossingClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	days    int
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewVisualCrossingClient returns a client that keeps at most days forecast days.
func NewVisualCrossingClient(apiKey, apiURL string, timeout time.Duration, days int) (*VisualCrossingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil || apiURL == "" {
		return nil, fmt.Errorf("invalid API URL %q", apiURL)
	}
	if days <= 0 {
		days = 15
	}
	return &VisualCrossingClient{
		apiKey:  apiKey,
		apiURL:  strings.TrimRight(apiURL, "/"),
		timeout: timeout,
		days:    days,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// SetCircuitBreaker makes calls fail fast while the upstream is unhealthy.
func (c *VisualCrossingClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type timelineResponse struct {
	ResolvedAddress string               `json:"resolvedAddress"`
	Address         string               `json:"address"`
	Days            []models.ForecastDay `json:"days"`
}

func (c *VisualCrossingClient) GetForecast(ctx context.Context, lat, lon float64) (models.Forecast, error) {
	var out models.Forecast
	call := func() error {
		f, err := c.callAPI(ctx, lat, lon)
		if err != nil {
			return err
		}
		out = f
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues("weather_api", string(CategorizeError(err))).Inc()
		return models.Forecast{}, err
	}
	return out, nil
}

func (c *VisualCrossingClient) callAPI(ctx context.Context, lat, lon float64) (models.Forecast, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, lat, lon)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.Forecast{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Forecast{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.Forecast{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return models.Forecast{}, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("read response body: %w", err)
	}

	var apiResp timelineResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.Forecast{}, fmt.Errorf("parse response: %w", err)
	}

	return c.mapResponse(apiResp, lat, lon), nil
}

// buildRequest targets {base}/{lat},{lon}?unitGroup=metric&key=...&contentType=json.
func (c *VisualCrossingClient) buildRequest(ctx context.Context, lat, lon float64) (*http.Request, error) {
	base, err := url.Parse(c.apiURL + "/" + formatCoord(lat) + "," + formatCoord(lon))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("key", c.apiKey)
	params.Set("contentType", "json")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// mapResponse keeps the first c.days days. The location falls back to the
// raw coordinates when the provider does not resolve an address.
func (c *VisualCrossingClient) mapResponse(apiResp timelineResponse, lat, lon float64) models.Forecast {
	days := apiResp.Days
	if len(days) > c.days {
		days = days[:c.days]
	}
	if days == nil {
		days = make([]models.ForecastDay, 0)
	}

	location := apiResp.ResolvedAddress
	if location == "" {
		location = apiResp.Address
	}
	if location == "" {
		location = formatCoord(lat) + "," + formatCoord(lon)
	}
	return models.Forecast{ResolvedAddress: location, Days: days}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
