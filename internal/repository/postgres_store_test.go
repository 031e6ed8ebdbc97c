package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	placeholderSQL = regexp.QuoteMeta(`VALUES ($1, 'null'::jsonb, NOW())`)
	lockSQL        = regexp.QuoteMeta(`SELECT value, (expires_at IS NULL OR expires_at > NOW()) AS live`)
	upsertSQL      = regexp.QuoteMeta(`NOW() + $3::double precision * interval '1 second'`)
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresUpdate_PlaceholderRowReadsAsAbsent(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(placeholderSQL).WithArgs("sensor:daily:f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockSQL).WithArgs("sensor:daily:f1").
		WillReturnRows(sqlmock.NewRows([]string{"value", "live"}).AddRow([]byte("null"), false))
	mock.ExpectExec(upsertSQL).WithArgs("sensor:daily:f1", `{"count":1}`, float64(60)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var gotCurrent []byte
	var gotExists bool
	err := store.Update(context.Background(), "sensor:daily:f1", time.Minute, func(current []byte, exists bool) ([]byte, error) {
		gotCurrent, gotExists = current, exists
		return []byte(`{"count":1}`), nil
	})

	require.NoError(t, err)
	assert.False(t, gotExists)
	assert.Nil(t, gotCurrent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_LiveRowWithoutTTL(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(placeholderSQL).WithArgs("farm:profile:f1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSQL).WithArgs("farm:profile:f1").
		WillReturnRows(sqlmock.NewRows([]string{"value", "live"}).AddRow([]byte(`{"name":"North"}`), true))
	mock.ExpectExec(upsertSQL).WithArgs("farm:profile:f1", `{"name":"South"}`, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "farm:profile:f1", 0, func(current []byte, exists bool) ([]byte, error) {
		assert.True(t, exists)
		assert.JSONEq(t, `{"name":"North"}`, string(current))
		return []byte(`{"name":"South"}`), nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_CallbackErrorRollsBack(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(placeholderSQL).WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSQL).WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value", "live"}).AddRow([]byte(`1`), true))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "k", 0, func([]byte, bool) ([]byte, error) { return nil, boom })

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
