package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/agroclima-service/internal/analysis"
	"github.com/kjstillabower/agroclima-service/internal/client"
	"github.com/kjstillabower/agroclima-service/internal/genai"
	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/observability"
	"github.com/kjstillabower/agroclima-service/internal/store"
	"github.com/kjstillabower/agroclima-service/internal/validation"
)

// ErrEmptyForecast is returned when the weather provider answers without any day.
var ErrEmptyForecast = errors.New("forecast has no days")

// PredictionService orchestrates crop lookup, forecast fetch and the AI
// analysis. Every call reaches the upstreams; nothing is cached or shared
// between requests.
type PredictionService struct {
	store   store.Store
	weather client.WeatherClient
	ai      genai.TextGenerator
}

func NewPredictionService(s store.Store, weather client.WeatherClient, ai genai.TextGenerator) *PredictionService {
	return &PredictionService{store: s, weather: weather, ai: ai}
}

// Predict reads the crop and the forecast concurrently, then asks the model
// for the risk analysis. A missing crop wraps store.ErrNotFound and skips the
// model call.
func (s *PredictionService) Predict(ctx context.Context, req validation.PredictionRequest) (models.Prediction, error) {
	start := time.Now()
	logger := loggerFromContext(ctx).With(
		zap.Float64("lat", req.Lat),
		zap.Float64("lon", req.Lon),
		zap.Int("crop_id", req.CropID),
	)

	crop, forecast, err := s.fetchInputs(ctx, req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			observability.PredictionsTotal.WithLabelValues("not_found").Inc()
			logger.Info("prediction crop not found")
		} else {
			observability.PredictionsTotal.WithLabelValues("error").Inc()
		}
		return models.Prediction{}, err
	}

	days := forecast.Days
	if len(days) > analysis.MaxPromptDays {
		days = days[:analysis.MaxPromptDays]
	}

	prompt, err := analysis.BuildRiskPrompt(req.Lat, req.Lon, crop, days)
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("error").Inc()
		return models.Prediction{}, fmt.Errorf("build prompt: %w", err)
	}

	reply, err := s.ai.Generate(ctx, prompt)
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("error").Inc()
		logger.Error("ai call failed",
			zap.String("upstream", "ai_api"),
			zap.String("provider", s.ai.Provider()),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return models.Prediction{}, fmt.Errorf("generate analysis: %w", err)
	}

	result, err := analysis.ParseAnalysis(reply)
	if err != nil {
		observability.PredictionsTotal.WithLabelValues("error").Inc()
		logger.Error("ai reply rejected",
			zap.String("upstream", "ai_api"),
			zap.Int("reply_bytes", len(reply)),
			zap.Error(err))
		return models.Prediction{}, fmt.Errorf("parse analysis: %w", err)
	}

	observability.PredictionsTotal.WithLabelValues("success").Inc()
	logger.Info("prediction served",
		zap.String("crop", crop.Name),
		zap.Int("days", len(days)),
		zap.Int("risks", len(result.Risks)),
		zap.Duration("duration", time.Since(start)))

	return models.Prediction{
		Location: forecast.ResolvedAddress,
		Forecast: days,
		Analysis: result,
		Crop:     crop,
	}, nil
}

// fetchInputs runs the crop read and the forecast fetch in parallel and joins
// both before returning. A failed crop read cancels the forecast fetch.
// Crop errors take precedence so a missing crop is always reported as such.
func (s *PredictionService) fetchInputs(ctx context.Context, req validation.PredictionRequest) (models.Crop, models.Forecast, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger := loggerFromContext(ctx)

	var (
		wg          sync.WaitGroup
		crop        models.Crop
		forecast    models.Forecast
		cropErr     error
		forecastErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		crop, cropErr = s.store.GetCrop(ctx, req.CropID)
		if cropErr != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		forecast, forecastErr = s.weather.GetForecast(ctx, req.Lat, req.Lon)
	}()
	wg.Wait()

	if cropErr != nil {
		if !errors.Is(cropErr, store.ErrNotFound) {
			logger.Error("crop lookup failed", zap.String("upstream", "store"), zap.Error(cropErr))
		}
		return models.Crop{}, models.Forecast{}, fmt.Errorf("crop lookup: %w", cropErr)
	}
	if forecastErr != nil {
		logger.Error("forecast fetch failed",
			zap.String("upstream", "weather_api"),
			zap.String("category", string(client.CategorizeError(forecastErr))),
			zap.Error(forecastErr))
		return models.Crop{}, models.Forecast{}, fmt.Errorf("fetch forecast: %w", forecastErr)
	}
	if len(forecast.Days) == 0 {
		logger.Error("forecast fetch returned no days", zap.String("upstream", "weather_api"))
		return models.Crop{}, models.Forecast{}, fmt.Errorf("fetch forecast: %w", ErrEmptyForecast)
	}
	return crop, forecast, nil
}

// CropInfo returns the crop row plus the model's sustainability commentary.
func (s *PredictionService) CropInfo(ctx context.Context, cropID int) (models.CropInfo, error) {
	logger := loggerFromContext(ctx).With(zap.Int("crop_id", cropID))

	crop, err := s.store.GetCrop(ctx, cropID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Error("crop lookup failed", zap.String("upstream", "store"), zap.Error(err))
		}
		return models.CropInfo{}, fmt.Errorf("crop lookup: %w", err)
	}

	reply, err := s.ai.Generate(ctx, analysis.BuildCropPrompt(crop))
	if err != nil {
		logger.Error("ai call failed",
			zap.String("upstream", "ai_api"),
			zap.String("provider", s.ai.Provider()),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return models.CropInfo{}, fmt.Errorf("generate commentary: %w", err)
	}

	commentary, err := analysis.ParseCommentary(reply)
	if err != nil {
		logger.Error("ai reply rejected", zap.String("upstream", "ai_api"), zap.Error(err))
		return models.CropInfo{}, fmt.Errorf("parse commentary: %w", err)
	}

	logger.Debug("crop info served", zap.String("crop", crop.Name))
	return models.CropInfo{Crop: crop, Commentary: commentary}, nil
}
