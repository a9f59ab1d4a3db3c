package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lacucina/restaurant-backend/pkg/config"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const txRetryBase = 20 * time.Millisecond

// Client wraps the process-wide GORM connection shared by the order, catalog
// and retention repositories.
type Client struct {
	conn      *gorm.DB
	txRetries uint64
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens the configured driver, applies pool limits and pings. Slow
// statements are reported through logg; everything else gorm says is dropped.
// Driver errors are not translated so constraint names and pg diagnostics
// survive up to IsUniqueViolation and the error dump.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"driver":     cfg.Driver,
			"tx_retries": cfg.TxRetries,
		}), "database connection established")
	}

	client := NewFromGorm(conn)
	if cfg.TxRetries > 0 {
		client.txRetries = uint64(cfg.TxRetries)
	}
	return client, nil
}

// NewFromGorm wraps an already opened connection. Transactions are not
// retried unless the client came from New.
func NewFromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "postgres":
		return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

func gormLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil || slow <= 0 {
		return gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent})
	}
	return gormlogger.New(slowQueryWriter{logg: logg}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

// slowQueryWriter routes gorm's warnings into the structured log.
// ParameterizedQueries keeps customer data out of the statement text.
type slowQueryWriter struct {
	logg *logger.Logger
}

func (w slowQueryWriter) Printf(format string, args ...any) {
	msg := strings.Join(strings.Fields(fmt.Sprintf(format, args...)), " ")
	w.logg.Warn(w.logg.WithField(context.Background(), "component", "gorm"), msg)
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction. gorm rolls back on error or panic. When
// Postgres aborts the transaction with a serialization failure or deadlock,
// fn is replayed up to the configured number of times, so it must not keep
// side effects outside tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	run := func(ctx context.Context) error {
		return c.conn.WithContext(ctx).Transaction(fn)
	}
	if c.txRetries == 0 {
		return run(ctx)
	}
	backoff := retry.WithMaxRetries(c.txRetries, retry.NewExponential(txRetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := run(ctx)
		if pkgerrors.PostgresDiagnostics(err).Transient() {
			return retry.RetryableError(err)
		}
		return err
	})
}
