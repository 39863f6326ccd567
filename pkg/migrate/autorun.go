package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stagecall/pkg/config"
	"github.com/angelmondragon/stagecall/pkg/db"
	"github.com/angelmondragon/stagecall/pkg/logger"
)

// MaybeRunDev applies pending migrations on worker start in dev when AutoMigrate is on.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "dir", DefaultDir)
	logg.Info(ctx, "applying migrations before start")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
