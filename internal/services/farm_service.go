package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
	"farm-advisory/shared/utils"
)

type IFarmService interface {
	SaveFarmProfile(ctx context.Context, profile models.FarmProfile) (*models.FarmProfile, error)
	GetFarmProfile(ctx context.Context, farmID string) (*models.FarmProfile, error)
}

type FarmService struct {
	repo *repository.FarmRepository
	now  func() time.Time
}

func NewFarmService(repo *repository.FarmRepository) *FarmService {
	return &FarmService{repo: repo, now: time.Now}
}

func (s *FarmService) SaveFarmProfile(ctx context.Context, profile models.FarmProfile) (*models.FarmProfile, error) {
	utils.TrimAllStringFields(&profile)
	if profile.FarmID == "" {
		return nil, invalid("farmId", "is required")
	}
	if profile.Name == "" {
		return nil, invalid("name", "is required")
	}
	if profile.SoilPH < 0 || profile.SoilPH > 14 {
		return nil, invalid("soilPh", "must be between 0 and 14")
	}
	if profile.AreaHectares < 0 {
		return nil, invalid("areaHectares", "must not be negative")
	}
	if c := profile.Coordinates; c != nil && (c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180) {
		return nil, invalid("coordinates", "out of range")
	}

	if profile.Boundary != nil {
		measured, err := profile.Boundary.Measure()
		if err != nil {
			return nil, invalid("boundary", "%v", err)
		}
		profile.Coordinates = &measured.Centroid
		profile.AreaHectares = measured.AreaHectares
		profile.BoundaryWKT = measured.WKT
	}

	crops := make([]string, 0, len(profile.Crops))
	for _, crop := range profile.Crops {
		if crop = normalizeCrop(crop); crop != "" {
			crops = append(crops, crop)
		}
	}
	profile.Crops = crops

	now := s.now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	saved, err := s.repo.Save(ctx, &profile)
	if err != nil {
		return nil, err
	}
	slog.Info("Farm profile saved", "farm_id", saved.FarmID, "area_ha", saved.AreaHectares)
	return saved, nil
}

func (s *FarmService) GetFarmProfile(ctx context.Context, farmID string) (*models.FarmProfile, error) {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return nil, invalid("farmId", "is required")
	}
	profile, err := s.repo.Get(ctx, farmID)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, fmt.Errorf("farm %s: %w", farmID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load farm %s: %w", farmID, err)
	}
	return profile, nil
}
