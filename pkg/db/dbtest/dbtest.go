// Package dbtest opens throwaway SQLite databases carrying the order and
// catalog tables, for repository and service tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  delivery_address TEXT,
  notes TEXT,
  payment_method TEXT NOT NULL DEFAULT 'cash',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  gateway_order_id TEXT UNIQUE,
  gateway_attempt INTEGER NOT NULL DEFAULT 0,
  gateway_status INTEGER,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  product_kind TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  category_id TEXT,
  name TEXT NOT NULL,
  description TEXT,
  price TEXT NOT NULL,
  discount_type TEXT,
  discount_value TEXT,
  discount_active INTEGER NOT NULL DEFAULT 0,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE wines (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  region TEXT,
  vintage INTEGER,
  price TEXT NOT NULL,
  discount_type TEXT,
  discount_value TEXT,
  discount_active INTEGER NOT NULL DEFAULT 0,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
}

// Open returns a client over a fresh in-memory database with foreign keys on.
func Open(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	for _, stmt := range schema {
		if err := client.DB().Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return client
}
