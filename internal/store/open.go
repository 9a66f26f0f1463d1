package store

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/shared"
)

// Open creates the backend selected by cfg.
//
// The returned backend is always usable: when the configured one cannot be opened the error is
// returned alongside a [NoopBackend].
func Open(ctx context.Context, cfg shared.StoreConfig, logger *log.Logger) (Backend, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	var (
		backend Backend
		err     error
	)

	switch cfg.Driver {
	case "memory":
		backend = NewMemoryHub().Open()
	case "sqlite", "":
		backend, err = OpenSQLite(cfg.Path, SQLiteOptions{
			PollInterval: cfg.PollInterval,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
			Logger:       logger,
		})
	case "redis":
		backend, err = OpenRedis(ctx, cfg.RedisURL, cfg.RedisPrefix, logger)
	default:
		err = fmt.Errorf("%w: %q", shared.ErrUnknownDriver, cfg.Driver)
	}

	if err != nil {
		logger.Warn("storage unavailable, continuing without persistence", "driver", cfg.Driver, "error", err)
		return NewNoopBackend(), err
	}

	logger.Debug("store opened", "driver", cfg.Driver, "origin", backend.Origin())
	return backend, nil
}
