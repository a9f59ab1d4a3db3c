package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/pkg/config"
)

func TestWithTxRollsBackOnError(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file:withtx?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.DB().Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`).Error)

	boom := errors.New("boom")
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`INSERT INTO notes (id, body) VALUES (1, 'a')`).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, client.DB().Raw(`SELECT COUNT(*) FROM notes`).Scan(&count).Error)
	require.Zero(t, count)

	require.NoError(t, client.Ping(context.Background()))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), ""))
	require.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.order_number"), ""))
	require.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "orders_order_number_key"`), "orders_order_number_key"))
	require.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	require.False(t, IsUniqueViolation(nil, ""))

	pgErr := fmt.Errorf("create order: %w", &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"})
	require.True(t, IsUniqueViolation(pgErr, "order_number"))
	require.False(t, IsUniqueViolation(pgErr, "gateway_order_id"))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "40001"}, ""))
	require.False(t, IsUniqueViolation(gorm.ErrDuplicatedKey, "order_number"))
}

func TestDriverErrorsKeepConstraintNames(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file:unique-names?mode=memory&cache=shared"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	conn := client.DB()
	require.NoError(t, conn.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, order_number TEXT UNIQUE, gateway_order_id TEXT UNIQUE)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO orders (id, order_number, gateway_order_id) VALUES (1, 'LC-1', 'G1')`).Error)

	err = conn.Exec(`INSERT INTO orders (id, order_number, gateway_order_id) VALUES (2, 'LC-1', 'G2')`).Error
	require.Error(t, err)
	require.NotErrorIs(t, err, gorm.ErrDuplicatedKey)
	require.True(t, IsUniqueViolation(err, "order_number"))
	require.False(t, IsUniqueViolation(err, "gateway_order_id"))
}

func TestWithTxReplaysTransientFailures(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file:withtx-retry?mode=memory&cache=shared", TxRetries: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().Exec(`CREATE TABLE tickets (id INTEGER PRIMARY KEY)`).Error)

	attempts := 0
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Exec(`INSERT INTO tickets (id) VALUES (1)`).Error; err != nil {
			return err
		}
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)

	var count int64
	require.NoError(t, client.DB().Raw(`SELECT COUNT(*) FROM tickets`).Scan(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestWithTxDoesNotReplayPermanentFailures(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: "file:withtx-permanent?mode=memory&cache=shared", TxRetries: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	attempts := 0
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.True(t, IsUniqueViolation(err, "order_number"))
}
