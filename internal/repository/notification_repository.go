package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"farm-advisory/internal/models"
)

type NotificationRepository struct {
	store Store
}

func NewNotificationRepository(store Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// SaveSubscription overwrites any previous subscription of the user and
// records the user in the global and per farm subscriber indexes.
func (r *NotificationRepository) SaveSubscription(ctx context.Context, sub *models.NotificationSubscription, previousFarmID string) error {
	if err := SetJSON(ctx, r.store, SubscriptionKey(sub.UserID), sub, 0); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	if err := r.addToIndex(ctx, subscriberIndexKey, sub.UserID); err != nil {
		return err
	}
	if previousFarmID != "" && previousFarmID != sub.FarmID {
		if err := r.removeFromIndex(ctx, FarmSubscribersKey(previousFarmID), sub.UserID); err != nil {
			return err
		}
	}
	if sub.FarmID != "" {
		if err := r.addToIndex(ctx, FarmSubscribersKey(sub.FarmID), sub.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (r *NotificationRepository) GetSubscription(ctx context.Context, userID string) (*models.NotificationSubscription, error) {
	var sub models.NotificationSubscription
	if err := GetJSON(ctx, r.store, SubscriptionKey(userID), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *NotificationRepository) ListSubscriberIDs(ctx context.Context) ([]string, error) {
	return r.readIndex(ctx, subscriberIndexKey)
}

func (r *NotificationRepository) ListFarmSubscriberIDs(ctx context.Context, farmID string) ([]string, error) {
	return r.readIndex(ctx, FarmSubscribersKey(farmID))
}

func (r *NotificationRepository) readIndex(ctx context.Context, key string) ([]string, error) {
	var ids []string
	err := GetJSON(ctx, r.store, key, &ids)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", key, err)
	}
	return ids, nil
}

func (r *NotificationRepository) addToIndex(ctx context.Context, key, userID string) error {
	err := UpdateJSON(ctx, r.store, key, 0, func(ids *[]string, _ bool) error {
		if !slices.Contains(*ids, userID) {
			*ids = append(*ids, userID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update index %s: %w", key, err)
	}
	return nil
}

func (r *NotificationRepository) removeFromIndex(ctx context.Context, key, userID string) error {
	err := UpdateJSON(ctx, r.store, key, 0, func(ids *[]string, _ bool) error {
		*ids = slices.DeleteFunc(*ids, func(id string) bool { return id == userID })
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update index %s: %w", key, err)
	}
	return nil
}

// Prepend puts n at the head of the user's list and evicts everything past
// NotificationListCap.
func (r *NotificationRepository) Prepend(ctx context.Context, n *models.Notification) error {
	key := NotificationListKey(n.UserID)
	err := UpdateJSON(ctx, r.store, key, 0, func(list *[]models.Notification, _ bool) error {
		next := make([]models.Notification, 0, min(len(*list)+1, NotificationListCap))
		next = append(next, *n)
		next = append(next, *list...)
		if len(next) > NotificationListCap {
			next = next[:NotificationListCap]
		}
		*list = next
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification for %s: %w", n.UserID, err)
	}
	return nil
}

func (r *NotificationRepository) List(ctx context.Context, userID string) ([]models.Notification, error) {
	var list []models.Notification
	err := GetJSON(ctx, r.store, NotificationListKey(userID), &list)
	if errors.Is(err, ErrKeyNotFound) {
		return []models.Notification{}, nil
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Modify runs fn over the stored list atomically and returns the list as
// written.
func (r *NotificationRepository) Modify(ctx context.Context, userID string, fn func(list []models.Notification) error) ([]models.Notification, error) {
	var result []models.Notification
	err := UpdateJSON(ctx, r.store, NotificationListKey(userID), 0, func(list *[]models.Notification, _ bool) error {
		if err := fn(*list); err != nil {
			return err
		}
		result = *list
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []models.Notification{}
	}
	return result, nil
}
