package migrate

import (
	"context"
	"fmt"

	"github.com/xymail/xymail-backend/pkg/config"
	"github.com/xymail/xymail-backend/pkg/db"
	"github.com/xymail/xymail-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations when running in dev with the
// auto-migrate flag, or whenever the process runs on SQLite.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	sqliteMode := cfg.FeatureFlags.UseSQLite
	if !sqliteMode && (!cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate) {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": client.Dialect()})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := UpEmbedded(ctx, sqlDB, client.Dialect()); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
