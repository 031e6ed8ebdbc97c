package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"farm-advisory/shared/utils"
)

var (
	// ErrKeyNotFound is returned for absent and expired keys alike.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUpdateConflict is returned when an atomic update keeps losing the race.
	ErrUpdateConflict = errors.New("update conflict: retries exhausted")
)

// UpdateFunc receives the current value (nil when absent) and returns the value to store.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store is the key-value abstraction every advisory repository writes through.
// Values are opaque JSON documents; a ttl <= 0 means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Update performs an atomic read-modify-write of a single key.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

const maxUpdateRetries = 10

func GetJSON[T any](ctx context.Context, s Store, key string, target *T) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return utils.DeserializeModel(data, target)
}

func SetJSON[T any](ctx context.Context, s Store, key string, model T, ttl time.Duration) error {
	data, err := utils.SerializeModel(model)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// UpdateJSON decodes the current value into T (zero value when absent), lets
// fn mutate it and writes the result back atomically.
func UpdateJSON[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func(current *T, exists bool) error) error {
	return s.Update(ctx, key, ttl, func(raw []byte, exists bool) ([]byte, error) {
		var current T
		if exists {
			if err := utils.DeserializeModel(raw, &current); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", key, err)
			}
		}
		if err := fn(&current, exists); err != nil {
			return nil, err
		}
		return utils.SerializeModel(current)
	})
}
