package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fieldops-backend/pkg/config"
	"github.com/angelmondragon/fieldops-backend/pkg/db"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on boot in dev when
// FIELDOPS_AUTO_MIGRATE is set. SQLite gets the portable schema instead of
// the Postgres migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "dev auto-migrate: sqlite schema")
		return db.EnsureSQLiteSchema(ctx, client.DB())
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, logg)
	if err != nil {
		return err
	}
	logg.Info(ctx, "dev auto-migrate: goose up")
	return runner.Up(ctx)
}
