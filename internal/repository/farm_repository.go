package repository

import (
	"context"
	"fmt"

	"farm-advisory/internal/models"
)

type FarmRepository struct {
	store Store
}

func NewFarmRepository(store Store) *FarmRepository {
	return &FarmRepository{store: store}
}

// Save keeps the original creation time when the profile already exists.
func (r *FarmRepository) Save(ctx context.Context, profile *models.FarmProfile) (*models.FarmProfile, error) {
	var saved models.FarmProfile
	err := UpdateJSON(ctx, r.store, FarmProfileKey(profile.FarmID), 0, func(current *models.FarmProfile, exists bool) error {
		createdAt := profile.CreatedAt
		if exists && !current.CreatedAt.IsZero() {
			createdAt = current.CreatedAt
		}
		*current = *profile
		current.CreatedAt = createdAt
		saved = *current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save farm profile %s: %w", profile.FarmID, err)
	}
	return &saved, nil
}

func (r *FarmRepository) Get(ctx context.Context, farmID string) (*models.FarmProfile, error) {
	var profile models.FarmProfile
	if err := GetJSON(ctx, r.store, FarmProfileKey(farmID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
