package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/agroclima-service/internal/circuitbreaker"
	"github.com/kjstillabower/agroclima-service/internal/client"
	"github.com/kjstillabower/agroclima-service/internal/config"
	"github.com/kjstillabower/agroclima-service/internal/genai"
	httphandler "github.com/kjstillabower/agroclima-service/internal/http"
	"github.com/kjstillabower/agroclima-service/internal/lifecycle"
	"github.com/kjstillabower/agroclima-service/internal/observability"
	"github.com/kjstillabower/agroclima-service/internal/service"
	"github.com/kjstillabower/agroclima-service/internal/store"
	"github.com/kjstillabower/agroclima-service/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	openCtx, openCancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := store.Open(openCtx, store.Options{
		Driver:       cfg.StoreDriver,
		DSN:          cfg.StoreDSN,
		Host:         cfg.StoreHost,
		User:         cfg.StoreUser,
		Password:     cfg.StorePassword,
		Database:     cfg.StoreDatabase,
		MaxOpenConns: cfg.StoreMaxOpenConns,
		AutoMigrate:  cfg.StoreAutoMigrate,
	})
	openCancel()
	if err != nil {
		logger.Fatal("store", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	logger.Info("store connected", zap.String("driver", cfg.StoreDriver), zap.Int("max_open_conns", cfg.StoreMaxOpenConns))

	weatherClient, err := client.NewVisualCrossingClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout, cfg.ForecastDays)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	aiClient, err := genai.New(genai.Config{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		URL:      cfg.AIURL,
		Model:    cfg.AIModel,
		Timeout:  cfg.AITimeout,
	})
	if err != nil {
		logger.Fatal("ai client", zap.Error(err))
	}
	logger.Info("ai client ready", zap.String("provider", aiClient.Provider()), zap.String("model", cfg.AIModel))

	if cfg.CircuitBreakerEnabled {
		weatherClient.SetCircuitBreaker(newBreaker(cfg, "weather_api", logger))
		aiClient.SetCircuitBreaker(newBreaker(cfg, "ai_api", logger))
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	catalog := service.NewCatalogService(db)
	predictions := service.NewPredictionService(db, weatherClient, aiClient)

	tracker := traffic.NewTracker(clockwork.NewRealClock())
	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		StorePing:        db.Ping,
	}
	handler := httphandler.NewHandler(catalog, predictions, tracker, healthConfig, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		StaticDir:      cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           httphandler.WithCORS(router, cfg.CORSOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Predictions take up to request.timeout; leave room to write the 500.
		WriteTimeout: cfg.RequestTimeout + 10*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("static_dir", cfg.StaticDir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	// /health answers 503 starting until this point.
	lifecycle.MarkServing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := db.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
	logger.Info("shutdown complete")
}

func newBreaker(cfg *config.Config, component string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	observability.CircuitBreakerState.WithLabelValues(component).Set(0)
	return circuitbreaker.New(circuitbreaker.Config{
		Component:        component,
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		OnStateChange: func(from, to string) {
			observability.RecordCircuitBreakerTransition(component, from, to)
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from),
				zap.String("to", to))
		},
	})
}
