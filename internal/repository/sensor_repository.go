package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farm-advisory/internal/models"
)

type SensorRepository struct {
	store Store
}

func NewSensorRepository(store Store) *SensorRepository {
	return &SensorRepository{store: store}
}

// SaveReading stores the raw reading and moves the per type latest pointer.
func (r *SensorRepository) SaveReading(ctx context.Context, reading *models.SensorReading) error {
	key := SensorReadingKey(reading.FarmID, reading.SensorID, reading.Timestamp)
	if err := SetJSON(ctx, r.store, key, reading, SensorRetention); err != nil {
		return fmt.Errorf("failed to save reading %s: %w", key, err)
	}

	latestKey := SensorLatestKey(reading.FarmID, string(reading.SensorType))
	err := UpdateJSON(ctx, r.store, latestKey, 0, func(current *models.SensorReading, exists bool) error {
		// an out of order reading must not replace a newer one
		if exists && current.Timestamp.After(reading.Timestamp) {
			return nil
		}
		*current = *reading
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update latest pointer %s: %w", latestKey, err)
	}
	return nil
}

func (r *SensorRepository) GetReading(ctx context.Context, farmID, sensorID string, ts time.Time) (*models.SensorReading, error) {
	var reading models.SensorReading
	if err := GetJSON(ctx, r.store, SensorReadingKey(farmID, sensorID, ts), &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// GetLatest returns nil without error when the farm never reported the type.
func (r *SensorRepository) GetLatest(ctx context.Context, farmID string, sensorType models.SensorType) (*models.SensorReading, error) {
	var reading models.SensorReading
	err := GetJSON(ctx, r.store, SensorLatestKey(farmID, string(sensorType)), &reading)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reading, nil
}

// AccumulateDaily folds the reading into its (farm, type, date) aggregate as
// one atomic read-modify-write.
func (r *SensorRepository) AccumulateDaily(ctx context.Context, reading *models.SensorReading) (*models.DailyAggregate, error) {
	key := SensorDailyKey(reading.FarmID, string(reading.SensorType), reading.Timestamp)
	var result models.DailyAggregate
	err := UpdateJSON(ctx, r.store, key, SensorRetention, func(agg *models.DailyAggregate, exists bool) error {
		if !exists {
			*agg = models.DailyAggregate{
				FarmID:     reading.FarmID,
				SensorType: reading.SensorType,
				Date:       reading.Timestamp.UTC().Format(dailyAggregateLayout),
			}
		}
		agg.Add(reading.Timestamp, reading.Value)
		result = *agg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update daily aggregate %s: %w", key, err)
	}
	return &result, nil
}

func (r *SensorRepository) GetDaily(ctx context.Context, farmID string, sensorType models.SensorType, day time.Time) (*models.DailyAggregate, error) {
	var agg models.DailyAggregate
	if err := GetJSON(ctx, r.store, SensorDailyKey(farmID, string(sensorType), day), &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}
