//go:build integration
// +build integration

package client

import (
	"context"
	"os"
	"testing"
	"time"
)

const visualCrossingURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

func TestVisualCrossingClient_GetForecast_Integration(t *testing.T) {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	client, err := NewVisualCrossingClient(apiKey, visualCrossingURL, 15*time.Second, 15)
	if err != nil {
		t.Fatalf("NewVisualCrossingClient() error = %v", err)
	}

	// Londrina, PR
	forecast, err := client.GetForecast(context.Background(), -23.3045, -51.1696)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}

	if forecast.ResolvedAddress == "" {
		t.Error("GetForecast() returned empty resolvedAddress")
	}
	if len(forecast.Days) == 0 || len(forecast.Days) > 15 {
		t.Errorf("len(Days) = %d, want 1..15", len(forecast.Days))
	}
	if forecast.Days[0].Date == "" {
		t.Error("first day has no datetime")
	}
}
