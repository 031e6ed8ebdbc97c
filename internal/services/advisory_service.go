package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"farm-advisory/internal/models"
)

const (
	irrigationAlertMM = 5.0 // mm/day with no rain in the window
	heatStressIndex   = 41.0
)

// AdvisoryNotifier is the part of the notification service an advisory run
// needs.
type AdvisoryNotifier interface {
	SendWeatherAlert(ctx context.Context, farmID, title, message string, data map[string]any) (int, error)
	SendCropAdvisory(ctx context.Context, userID, title, message string, data map[string]any) (*models.Notification, error)
}

type IAdvisoryService interface {
	RunFarmAdvisory(ctx context.Context, farmID string) (*models.AdvisoryRun, error)
}

// AdvisoryService turns a farm's agronomic indices into weather alerts for
// its subscribers and sends the owner a crop advisory.
type AdvisoryService struct {
	farms    IFarmService
	weather  IWeatherService
	crops    ICropService
	notifier AdvisoryNotifier
	now      func() time.Time
}

func NewAdvisoryService(farms IFarmService, weather IWeatherService, crops ICropService, notifier AdvisoryNotifier) *AdvisoryService {
	return &AdvisoryService{
		farms:    farms,
		weather:  weather,
		crops:    crops,
		notifier: notifier,
		now:      time.Now,
	}
}

// WeatherWarningsFor lists the alert-worthy conditions in order of urgency.
func WeatherWarningsFor(idx *models.AgronomicIndices) []models.WeatherWarning {
	var out []models.WeatherWarning
	if idx.HeatIndex >= heatStressIndex {
		out = append(out, models.WeatherWarning{
			Code:    "heat_stress",
			Title:   "Heat stress warning",
			Message: fmt.Sprintf("Heat index %.1f°C at %s. Irrigate early morning and shade nurseries.", idx.HeatIndex, idx.Location),
		})
	}
	if idx.DiseaseRisk == models.RiskHigh {
		out = append(out, models.WeatherWarning{
			Code:    "disease_risk",
			Title:   "High disease risk",
			Message: fmt.Sprintf("Humid conditions (%.0f%%) favour fungal disease. Inspect leaves and plan a preventive spray.", idx.AverageHumidity),
		})
	}
	if idx.PestRisk == models.RiskHigh {
		out = append(out, models.WeatherWarning{
			Code:    "pest_risk",
			Title:   "High pest risk",
			Message: "Warm humid weather favours pest build-up. Check traps and scout fields this week.",
		})
	}
	if idx.IrrigationNeed >= irrigationAlertMM && idx.WetDays == 0 {
		out = append(out, models.WeatherWarning{
			Code:    "irrigation",
			Title:   "Irrigation needed",
			Message: fmt.Sprintf("No rain expected for %d days. Crops need about %.1f mm/day.", idx.ForecastDays, idx.IrrigationNeed),
		})
	}
	return out
}

func (s *AdvisoryService) RunFarmAdvisory(ctx context.Context, farmID string) (*models.AdvisoryRun, error) {
	const op = "AdvisoryService.RunFarmAdvisory"
	log := slog.With("operation", op, "farm_id", farmID)

	farm, err := s.farms.GetFarmProfile(ctx, farmID)
	if err != nil {
		return nil, err
	}
	run := &models.AdvisoryRun{
		FarmID:   farm.FarmID,
		Warnings: []models.WeatherWarning{},
		RanAt:    s.now(),
	}

	if location := farm.LocationQuery(); location == "" {
		run.Skipped = append(run.Skipped, "weather: farm has no location")
	} else {
		indices, err := s.weather.GetAgriculturalIndices(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to load indices for %s: %w", farmID, err)
		}
		run.WeatherSource = indices.Source
		run.Warnings = append(run.Warnings, WeatherWarningsFor(indices)...)
		for _, w := range run.Warnings {
			n, err := s.notifier.SendWeatherAlert(ctx, farm.FarmID, w.Title, w.Message, map[string]any{
				"code":     w.Code,
				"location": location,
			})
			if err != nil {
				log.Error("Failed to send weather alert", "code", w.Code, "error", err)
				continue
			}
			run.AlertRecipients += n
		}
	}

	if farm.OwnerID == "" {
		run.Skipped = append(run.Skipped, "advisory: farm has no owner")
		return run, nil
	}
	recs, err := s.crops.GetCropRecommendations(ctx, profileInput(farm))
	if err != nil {
		return nil, fmt.Errorf("failed to score crops for %s: %w", farmID, err)
	}
	if len(recs.Recommendations) == 0 {
		return run, nil
	}
	top := recs.Recommendations[0]
	run.AdvisoryCrop = top.Crop

	title := fmt.Sprintf("Crop advisory for %s", farm.Name)
	message := fmt.Sprintf("%s is rated %s (%.0f/100) for your field.", top.Crop, top.Suitability, top.Score)
	if len(top.Reasons) > 0 {
		message += " " + top.Reasons[0]
	}
	_, err = s.notifier.SendCropAdvisory(ctx, farm.OwnerID, title, message, map[string]any{
		"farmId": farm.FarmID,
		"crop":   top.Crop,
		"score":  top.Score,
	})
	switch {
	case errors.Is(err, ErrNotFound):
		run.Skipped = append(run.Skipped, "advisory: owner has no subscription")
	case err != nil:
		return nil, fmt.Errorf("failed to send crop advisory: %w", err)
	default:
		run.AdvisorySent = true
	}

	log.Info("Farm advisory completed",
		"warnings", len(run.Warnings),
		"alert_recipients", run.AlertRecipients,
		"advisory_sent", run.AdvisorySent,
	)
	return run, nil
}
