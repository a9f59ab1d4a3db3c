package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

// MaybeRunDev brings a local database up to date on API start when
// RESTAURANT_AUTO_MIGRATE is set. Other environments migrate with cmd/migrate
// before the rollout.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}
	if cfg.DB.Driver != "" && cfg.DB.Driver != "postgres" {
		logg.Warn(logg.WithField(ctx, "driver", cfg.DB.Driver), "auto-migrate skipped for non postgres driver")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	src, err := EmbeddedSource()
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, goose.DialectPostgres, src, logg)
	if err != nil {
		return err
	}

	before, err := runner.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := runner.Up(ctx); err != nil {
		return err
	}
	after, err := runner.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"from_version": before, "to_version": after}), "dev schema up to date")
	return nil
}
