package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"farm-advisory/internal/config"
	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
)

type IWeatherService interface {
	GetCurrentWeather(ctx context.Context, location string) (*models.WeatherObservation, error)
	GetForecast(ctx context.Context, location string, days int) (*models.Forecast, error)
	GetAgriculturalIndices(ctx context.Context, location string) (*models.AgronomicIndices, error)
	ProviderName() models.DataSource
}

type WeatherService struct {
	cfg       config.WeatherConfig
	store     repository.Store
	provider  WeatherProvider
	synthetic *SyntheticDataSource
	metrics   *metrics.AdvisoryMetrics
	now       func() time.Time
}

func NewWeatherService(cfg config.WeatherConfig, store repository.Store, synthetic *SyntheticDataSource, m *metrics.AdvisoryMetrics) *WeatherService {
	if synthetic == nil {
		synthetic = NewSyntheticDataSource(nil, nil)
	}
	return &WeatherService{
		cfg:       cfg,
		store:     store,
		provider:  selectWeatherProvider(cfg, synthetic),
		synthetic: synthetic,
		metrics:   m,
		now:       time.Now,
	}
}

// WithProvider swaps the upstream provider. Used by tests and by callers that
// bring their own integration.
func (w *WeatherService) WithProvider(p WeatherProvider) *WeatherService {
	w.provider = p
	return w
}

func (w *WeatherService) ProviderName() models.DataSource {
	return w.provider.Name()
}

func normalizeLocation(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", invalid("location", "is required")
	}
	return location, nil
}

func clampForecastDays(days int) int {
	if days <= 0 {
		return defaultForecastDays
	}
	return min(days, maxForecastDays)
}

func (w *WeatherService) GetCurrentWeather(ctx context.Context, location string) (*models.WeatherObservation, error) {
	location, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}

	key := repository.WeatherCurrentKey(location)
	var cached models.WeatherObservation
	if err := repository.GetJSON(ctx, w.store, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		slog.Warn("Weather cache read failed", "key", key, "error", err)
	}

	obs, err := w.provider.CurrentWeather(ctx, location)
	if err != nil {
		slog.Warn("Weather provider failed, falling back to synthetic data",
			"provider", w.provider.Name(), "location", location, "error", err)
		w.metrics.RecordProviderFallback(string(w.provider.Name()))
		obs, _ = w.synthetic.CurrentWeather(ctx, location)
	}

	if err := repository.SetJSON(ctx, w.store, key, obs, w.cfg.CurrentTTL); err != nil {
		slog.Warn("Weather cache write failed", "key", key, "error", err)
	}
	return obs, nil
}

func (w *WeatherService) GetForecast(ctx context.Context, location string, days int) (*models.Forecast, error) {
	location, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}
	days = clampForecastDays(days)

	key := repository.WeatherForecastKey(location, days)
	var cached models.Forecast
	if err := repository.GetJSON(ctx, w.store, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		slog.Warn("Forecast cache read failed", "key", key, "error", err)
	}

	source := w.provider.Name()
	forecastDays, err := w.provider.Forecast(ctx, location, days)
	if err != nil {
		slog.Warn("Forecast provider failed, falling back to synthetic data",
			"provider", w.provider.Name(), "location", location, "error", err)
		w.metrics.RecordProviderFallback(string(w.provider.Name()))
		forecastDays, _ = w.synthetic.Forecast(ctx, location, days)
		source = models.SourceSynthetic
	}

	forecast := &models.Forecast{Location: location, Days: forecastDays, Source: source}
	if err := repository.SetJSON(ctx, w.store, key, forecast, w.cfg.ForecastTTL); err != nil {
		slog.Warn("Forecast cache write failed", "key", key, "error", err)
	}
	return forecast, nil
}

// GetAgriculturalIndices combines current conditions with a week of forecast.
func (w *WeatherService) GetAgriculturalIndices(ctx context.Context, location string) (*models.AgronomicIndices, error) {
	obs, err := w.GetCurrentWeather(ctx, location)
	if err != nil {
		return nil, err
	}
	forecast, err := w.GetForecast(ctx, location, maxForecastDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast for indices: %w", err)
	}

	indices := ComputeIndices(*obs, forecast.Days, w.now().UTC())
	if forecast.Source == models.SourceSynthetic {
		indices.Source = models.SourceSynthetic
	}
	return &indices, nil
}
