package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"farm-advisory/internal/models"

	"golang.org/x/sync/errgroup"
)

type IDashboardService interface {
	GetDashboard(ctx context.Context, farmID string) (*models.FarmDashboard, error)
}

type DashboardService struct {
	farms   IFarmService
	weather IWeatherService
	crops   ICropService
	iot     IIoTService
	market  IMarketService
	now     func() time.Time
}

func NewDashboardService(farms IFarmService, weather IWeatherService, crops ICropService, iot IIoTService, market IMarketService) *DashboardService {
	return &DashboardService{
		farms:   farms,
		weather: weather,
		crops:   crops,
		iot:     iot,
		market:  market,
		now:     time.Now,
	}
}

func profileInput(farm *models.FarmProfile) models.CropProfileInput {
	in := models.CropProfileInput{
		Location:       farm.LocationQuery(),
		SoilType:       farm.SoilType,
		FarmSize:       farm.AreaHectares,
		IrrigationType: farm.IrrigationType,
	}
	if farm.SoilPH > 0 {
		ph := farm.SoilPH
		in.SoilPH = &ph
	}
	return in
}

// GetDashboard loads the farm and then every panel concurrently. Only a
// missing farm fails the call; panel errors become warnings.
func (s *DashboardService) GetDashboard(ctx context.Context, farmID string) (*models.FarmDashboard, error) {
	farm, err := s.farms.GetFarmProfile(ctx, farmID)
	if err != nil {
		return nil, err
	}

	dash := &models.FarmDashboard{
		Farm:            farm,
		Recommendations: []models.CropRecommendation{},
		Prices:          []models.MarketPriceSample{},
		GeneratedAt:     s.now(),
	}
	location := farm.LocationQuery()

	var mu sync.Mutex
	warn := func(panel string, err error) {
		slog.Warn("Dashboard panel degraded", "farm_id", farmID, "panel", panel, "error", err)
		mu.Lock()
		defer mu.Unlock()
		dash.Warnings = append(dash.Warnings, fmt.Sprintf("%s: %v", panel, err))
	}

	// Branches never return an error so one failure cannot cancel the others.
	g, gctx := errgroup.WithContext(ctx)

	if location != "" {
		g.Go(func() error {
			obs, err := s.weather.GetCurrentWeather(gctx, location)
			if err != nil {
				warn("weather", err)
				return nil
			}
			dash.Weather = obs
			return nil
		})
		g.Go(func() error {
			indices, err := s.weather.GetAgriculturalIndices(gctx, location)
			if err != nil {
				warn("indices", err)
				return nil
			}
			dash.Indices = indices
			return nil
		})
	} else {
		warn("weather", fmt.Errorf("farm has no location"))
	}

	g.Go(func() error {
		recs, err := s.crops.GetCropRecommendations(gctx, profileInput(farm))
		if err != nil {
			warn("recommendations", err)
			return nil
		}
		dash.Recommendations = recs.Recommendations
		return nil
	})

	g.Go(func() error {
		latest, err := s.iot.GetLatestSensorData(gctx, farmID)
		if err != nil {
			warn("sensors", err)
			return nil
		}
		dash.Sensors = latest
		return nil
	})

	g.Go(func() error {
		prices := make([]models.MarketPriceSample, 0, len(farm.Crops))
		for _, crop := range farm.Crops {
			samples, err := s.market.GetCurrentPrices(gctx, crop, farm.Region)
			if err != nil {
				warn("prices", err)
				continue
			}
			prices = append(prices, samples...)
		}
		dash.Prices = prices
		return nil
	})

	_ = g.Wait()
	return dash, nil
}
