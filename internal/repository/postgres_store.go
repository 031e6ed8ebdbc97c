package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps entries in the kv_entries table. Expired rows read as
// absent until postgres.PurgeExpired removes them.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// lockedRow is read under FOR UPDATE. Live is computed against the database
// clock, the same clock Get filters with.
type lockedRow struct {
	Value []byte `db:"value"`
	Live  bool   `db:"live"`
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > NOW())`
	err := s.db.GetContext(ctx, &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.upsert(ctx, s.db, key, value, ttl)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

// Update locks the row for the duration of the transaction. A placeholder row
// that is already expired is inserted first so absent keys can be locked too.
func (s *PostgresStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres begin %s: %w", key, err)
	}
	defer tx.Rollback()

	placeholder := `INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, 'null'::jsonb, NOW())
		ON CONFLICT (key) DO NOTHING`
	if _, err := tx.ExecContext(ctx, placeholder, key); err != nil {
		return fmt.Errorf("postgres lock placeholder %s: %w", key, err)
	}

	var row lockedRow
	lock := `SELECT value, (expires_at IS NULL OR expires_at > NOW()) AS live
		FROM kv_entries WHERE key = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &row, lock, key); err != nil {
		return fmt.Errorf("postgres select for update %s: %w", key, err)
	}

	exists := row.Live
	current := row.Value
	if !exists {
		current = nil
	}

	next, err := fn(current, exists)
	if err != nil {
		return err
	}

	if err := s.upsert(ctx, tx, key, next, ttl); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres commit %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) upsert(ctx context.Context, exec sqlx.ExecerContext, key string, value []byte, ttl time.Duration) error {
	var ttlSeconds *float64
	if ttl > 0 {
		secs := ttl.Seconds()
		ttlSeconds = &secs
	}

	query := `INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2::jsonb, NOW() + $3::double precision * interval '1 second', NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()`
	if _, err := exec.ExecContext(ctx, query, key, string(value), ttlSeconds); err != nil {
		return fmt.Errorf("postgres upsert %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Driver() string { return "postgres" }

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
