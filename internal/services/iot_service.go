package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"

	"github.com/google/uuid"
)

const (
	lowBatteryThreshold = 20.0
	onlineWindow        = 2 * time.Hour
	delayedWindow       = 24 * time.Hour
	defaultHistoryRange = 7 * 24 * time.Hour
	maxHistoryRange     = 30 * 24 * time.Hour
	maxHealthDeduction  = 20.0
)

// SensorAlertNotifier receives every alert raised on ingest.
type SensorAlertNotifier interface {
	SendSensorAlert(ctx context.Context, farmID string, alert models.Alert) error
}

type IIoTService interface {
	Ingest(ctx context.Context, req models.SensorReadingRequest) (*models.IngestResult, error)
	GetLatestSensorData(ctx context.Context, farmID string) (*models.LatestSensorData, error)
	GetSensorHistory(ctx context.Context, farmID string, start, end time.Time) (*models.SensorHistory, error)
	SimulateIoTData(ctx context.Context, farmID string) ([]models.IngestResult, error)
}

type IoTService struct {
	repo     *repository.SensorRepository
	notifier SensorAlertNotifier
	metrics  *metrics.AdvisoryMetrics
	now      func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewIoTService(repo *repository.SensorRepository, notifier SensorAlertNotifier, m *metrics.AdvisoryMetrics, rng *rand.Rand) *IoTService {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &IoTService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
		rng:      rng,
	}
}

// NormalizeReading validates the raw payload and fills unit, timestamp and id.
func NormalizeReading(req models.SensorReadingRequest, now time.Time) (*models.SensorReading, error) {
	farmID := strings.TrimSpace(req.FarmID)
	sensorID := strings.TrimSpace(req.SensorID)
	sensorType := models.SensorType(strings.ToLower(strings.TrimSpace(req.SensorType)))

	if farmID == "" {
		return nil, invalid("farmId", "is required")
	}
	if sensorID == "" {
		return nil, invalid("sensorId", "is required")
	}
	if sensorType == "" {
		return nil, invalid("sensorType", "is required")
	}
	thresholds, ok := SensorThresholds[sensorType]
	if !ok {
		return nil, invalid("sensorType", "unknown sensor type %q", sensorType)
	}
	if req.Value == nil || math.IsNaN(*req.Value) || math.IsInf(*req.Value, 0) {
		return nil, invalid("value", "must be a finite number")
	}
	if req.BatteryLevel != nil && (*req.BatteryLevel < 0 || *req.BatteryLevel > 100) {
		return nil, invalid("batteryLevel", "must be between 0 and 100")
	}

	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = thresholds.Unit
	}
	ts := now.UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = req.Timestamp.UTC()
	}

	return &models.SensorReading{
		ID:           uuid.NewString(),
		FarmID:       farmID,
		SensorID:     sensorID,
		SensorType:   sensorType,
		Value:        *req.Value,
		Unit:         unit,
		Timestamp:    ts,
		BatteryLevel: req.BatteryLevel,
	}, nil
}

// EvaluateAlerts produces at most one threshold alert plus an independent
// maintenance alert for a weak battery.
func EvaluateAlerts(reading *models.SensorReading) []models.Alert {
	alerts := []models.Alert{}

	if tier := ClassifyThreshold(reading.SensorType, reading.Value); tier != models.TierNone {
		alertType, severity := tierAlertType(tier)
		alerts = append(alerts, models.Alert{
			Type:       alertType,
			Severity:   severity,
			Tier:       tier,
			SensorID:   reading.SensorID,
			SensorType: reading.SensorType,
			Value:      reading.Value,
			Message:    tierMessage(reading.SensorType, tier, reading.Value, reading.Unit),
			Action:     tierActions[reading.SensorType][tier],
			Timestamp:  reading.Timestamp,
		})
	}

	if reading.BatteryLevel != nil && *reading.BatteryLevel < lowBatteryThreshold {
		alerts = append(alerts, models.Alert{
			Type:       models.AlertMaintenance,
			Severity:   "low",
			SensorID:   reading.SensorID,
			SensorType: reading.SensorType,
			Value:      *reading.BatteryLevel,
			Message:    fmt.Sprintf("Sensor %s battery at %.0f%%", reading.SensorID, *reading.BatteryLevel),
			Action:     "Replace or recharge the sensor battery",
			Timestamp:  reading.Timestamp,
		})
	}
	return alerts
}

func buildRecommendations(reading *models.SensorReading, alerts []models.Alert) []string {
	recs := make([]string, 0, len(alerts)+1)
	for _, a := range alerts {
		if a.Action != "" {
			recs = append(recs, a.Action)
		}
	}
	t := SensorThresholds[reading.SensorType]
	switch {
	case reading.Value >= t.OptimalMin && reading.Value <= t.OptimalMax:
		recs = append(recs, fmt.Sprintf("%s is in the optimal range, maintain current practices", sensorLabel(reading.SensorType)))
	case len(recs) == 0:
		recs = append(recs, fmt.Sprintf("%s is acceptable, aim for %.1f-%.1f%s", sensorLabel(reading.SensorType), t.OptimalMin, t.OptimalMax, t.Unit))
	}
	return recs
}

func (s *IoTService) Ingest(ctx context.Context, req models.SensorReadingRequest) (*models.IngestResult, error) {
	const op = "IoTService.Ingest"
	log := slog.With("operation", op)

	reading, err := NormalizeReading(req, s.now())
	if err != nil {
		return nil, err
	}

	alerts := EvaluateAlerts(reading)
	result := &models.IngestResult{
		Reading:         *reading,
		Alerts:          alerts,
		DerivedMetrics:  DeriveMetrics(reading.SensorType, reading.Value),
		Recommendations: buildRecommendations(reading, alerts),
	}

	if err := s.repo.SaveReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.AccumulateDaily(ctx, reading); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.RecordSensorReading(string(reading.SensorType))
	for _, a := range alerts {
		s.metrics.RecordSensorAlert(string(a.Type))
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.SendSensorAlert(ctx, reading.FarmID, a); err != nil {
			log.Warn("Failed to fan out sensor alert",
				"farm_id", reading.FarmID,
				"sensor_id", reading.SensorID,
				"alert_type", a.Type,
				"error", err)
		}
	}

	log.Info("Sensor reading ingested",
		"farm_id", reading.FarmID,
		"sensor_type", reading.SensorType,
		"value", reading.Value,
		"alerts", len(alerts))
	return result, nil
}

// SensorStatusFor derives liveness purely from the gap since the last reading.
func SensorStatusFor(last, now time.Time) models.SensorStatus {
	gap := now.Sub(last)
	switch {
	case gap < onlineWindow:
		return models.SensorOnline
	case gap < delayedWindow:
		return models.SensorDelayed
	default:
		return models.SensorOffline
	}
}

// CalculateHealthScore starts at 100 and takes up to 20 points per sensor
// type by normalized distance from the optimal midpoint. Without any valid
// reading the score is 0.
func CalculateHealthScore(values map[models.SensorType]float64) float64 {
	score := 100.0
	valid := 0
	for sensorType, v := range values {
		t, ok := SensorThresholds[sensorType]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid++
		span := t.OptimalMax - t.OptimalMin
		deduction := maxHealthDeduction * math.Abs(v-t.Midpoint()) / span
		score -= math.Min(maxHealthDeduction, deduction)
	}
	if valid == 0 {
		return 0
	}
	return round(math.Max(0, score), 1)
}

func (s *IoTService) GetLatestSensorData(ctx context.Context, farmID string) (*models.LatestSensorData, error) {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return nil, invalid("farmId", "is required")
	}

	now := s.now()
	data := &models.LatestSensorData{
		FarmID:  farmID,
		Sensors: map[models.SensorType]models.SensorSnapshot{},
	}
	values := map[models.SensorType]float64{}

	for _, sensorType := range models.SensorTypes {
		reading, err := s.repo.GetLatest(ctx, farmID, sensorType)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest %s reading: %w", sensorType, err)
		}
		if reading == nil {
			continue
		}

		tier := ClassifyThreshold(sensorType, reading.Value)
		data.Sensors[sensorType] = models.SensorSnapshot{
			Reading: *reading,
			Status:  SensorStatusFor(reading.Timestamp, now),
			Tier:    tier,
		}
		values[sensorType] = reading.Value
		data.ActiveAlerts += len(EvaluateAlerts(reading))

		if data.LastUpdated == nil || reading.Timestamp.After(*data.LastUpdated) {
			ts := reading.Timestamp
			data.LastUpdated = &ts
		}
	}

	data.HealthScore = CalculateHealthScore(values)
	return data, nil
}

// GetSensorHistory returns daily aggregates ordered by date. The range
// defaults to the last 7 days and is cut to the 30 days readings are kept.
func (s *IoTService) GetSensorHistory(ctx context.Context, farmID string, start, end time.Time) (*models.SensorHistory, error) {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return nil, invalid("farmId", "is required")
	}
	if end.IsZero() {
		end = s.now()
	}
	if start.IsZero() {
		start = end.Add(-defaultHistoryRange)
	}
	end, start = end.UTC(), start.UTC()
	if end.Before(start) {
		return nil, invalid("end", "must not be before start")
	}
	if end.Sub(start) > maxHistoryRange {
		start = end.Add(-maxHistoryRange)
	}

	history := &models.SensorHistory{
		FarmID:     farmID,
		Start:      start.Format(time.DateOnly),
		End:        end.Format(time.DateOnly),
		Aggregates: []models.DailyAggregate{},
	}

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(end) {
		for _, sensorType := range models.SensorTypes {
			agg, err := s.repo.GetDaily(ctx, farmID, sensorType, day)
			if errors.Is(err, repository.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load %s aggregate for %s: %w", sensorType, day.Format(time.DateOnly), err)
			}
			history.Aggregates = append(history.Aggregates, *agg)
		}
		day = day.AddDate(0, 0, 1)
	}
	return history, nil
}

// SimulateIoTData ingests one bounded random reading per sensor type. Values
// are drawn slightly past the warning band so alerts show up now and then.
func (s *IoTService) SimulateIoTData(ctx context.Context, farmID string) ([]models.IngestResult, error) {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return nil, invalid("farmId", "is required")
	}

	results := make([]models.IngestResult, 0, len(models.SensorTypes))
	for i, sensorType := range models.SensorTypes {
		t := SensorThresholds[sensorType]

		s.mu.Lock()
		span := t.WarningHigh - t.WarningLow
		value := round(t.WarningLow-span*0.1+s.rng.Float64()*span*1.2, 2)
		battery := math.Round(10 + s.rng.Float64()*90)
		s.mu.Unlock()

		result, err := s.Ingest(ctx, models.SensorReadingRequest{
			FarmID:       farmID,
			SensorID:     fmt.Sprintf("sim-%s-%d", farmID, i+1),
			SensorType:   string(sensorType),
			Value:        &value,
			BatteryLevel: &battery,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}
