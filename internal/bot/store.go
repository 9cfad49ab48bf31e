package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/postgres"
	"github.com/rovshanmuradov/raydium-sniper/internal/storage/sqlite"
)

// OpenStore opens the position store selected by cfg.Driver and applies
// its migrations. An unavailable store aborts startup.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (storage.PositionStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.New(ctx, cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.Path, err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
