package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"threadline/internal/config"
	"threadline/internal/middleware"

	"gorm.io/gorm"
)

func isProdLikeEnv(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e == "production" || e == "prod" || e == "staging" || e == "stage"
}

// schemaPolicy decides how the relational schema is brought up to date.
// Postgres always runs the versioned SQL migrations; GORM AutoMigrate runs
// on top of them outside production-like environments, and is the only
// mechanism for SQLite.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return true, !isProdLikeEnv(cfg.Env), nil
	case config.DriverSQLite:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("no relational schema for store driver %q", cfg.StoreDriver)
	}
}

// ApplySchema migrates db according to schemaPolicy.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		migrations, err := Migrations()
		if err != nil {
			return err
		}
		if err := RunMigrations(ctx, db, migrations); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		middleware.Logger.Info("Running GORM AutoMigrate",
			slog.String("driver", cfg.StoreDriver),
			slog.String("env", cfg.Env),
		)
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}
