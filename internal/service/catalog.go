package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/agroclima-service/internal/models"
	"github.com/kjstillabower/agroclima-service/internal/store"
)

// CatalogService serves the reference data lists. Results come straight from
// the store on every call.
type CatalogService struct {
	store store.Store
}

func NewCatalogService(s store.Store) *CatalogService {
	return &CatalogService{store: s}
}

func (s *CatalogService) ListStates(ctx context.Context) ([]models.State, error) {
	states, err := s.store.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list states: %w", err)
	}
	return states, nil
}

func (s *CatalogService) ListMunicipalities(ctx context.Context, stateID int) ([]models.Municipality, error) {
	out, err := s.store.ListMunicipalities(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("list municipalities of state %d: %w", stateID, err)
	}
	return out, nil
}

func (s *CatalogService) ListCrops(ctx context.Context) ([]models.CropSummary, error) {
	crops, err := s.store.ListCrops(ctx)
	if err != nil {
		return nil, fmt.Errorf("list crops: %w", err)
	}
	return crops, nil
}

// GetCrop returns the crop or an error wrapping store.ErrNotFound.
func (s *CatalogService) GetCrop(ctx context.Context, id int) (models.Crop, error) {
	crop, err := s.store.GetCrop(ctx, id)
	if err != nil {
		return models.Crop{}, fmt.Errorf("get crop: %w", err)
	}
	return crop, nil
}

// PriceHistory returns the crop's quotes, oldest first. Unknown crops wrap
// store.ErrNotFound; a known crop without quotes yields an empty series.
func (s *CatalogService) PriceHistory(ctx context.Context, cropID int) (models.PriceSeries, error) {
	crop, err := s.store.GetCrop(ctx, cropID)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("price history: %w", err)
	}
	prices, err := s.store.ListPrices(ctx, cropID)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("price history of crop %d: %w", cropID, err)
	}
	loggerFromContext(ctx).Debug("price history served", zap.Int("crop_id", cropID), zap.Int("points", len(prices)))
	return models.PriceSeries{CropID: crop.ID, CropName: crop.Name, Prices: prices}, nil
}
