package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/shared"
)

const defaultPollInterval = 500 * time.Millisecond

// SQLiteBackend implements [Backend] on the kv_store table.
//
// Each row carries the origin of its last writer and a version bumped on every write; watchers
// poll the version because SQLite has no cross-process notifications.
type SQLiteBackend struct {
	db       *sql.DB
	origin   string
	interval time.Duration
	logger   *log.Logger
	ownsDB   bool
}

// SQLiteOptions configures a [SQLiteBackend].
type SQLiteOptions struct {
	PollInterval time.Duration
	MaxOpenConns int
	MaxIdleConns int
	Logger       *log.Logger
}

// NewSQLiteBackend wraps an open database whose migrations have already run.
func NewSQLiteBackend(db *sql.DB, opts SQLiteOptions) *SQLiteBackend {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SQLiteBackend{
		db:       db,
		origin:   shared.GenerateID(),
		interval: opts.PollInterval,
		logger:   shared.WithLogger(opts.Logger, "component", "store", "driver", "sqlite"),
	}
}

// OpenSQLite opens the database at path, runs migrations and returns a backend that owns it.
func OpenSQLite(path string, opts SQLiteOptions) (*SQLiteBackend, error) {
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}
	shared.ConfigureDatabase(db, opts.MaxOpenConns, opts.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
	}

	b := NewSQLiteBackend(db, opts)
	b.ownsDB = true
	return b, nil
}

func (b *SQLiteBackend) Origin() string { return b.origin }

func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value   string
		present bool
	)
	err := b.db.QueryRowContext(ctx, "SELECT value, present FROM kv_store WHERE key = ?", key).Scan(&value, &present)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query key: %w", err)
	}
	if !present {
		return "", false, nil
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	return b.write(ctx, key, value, true)
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	return b.write(ctx, key, "", false)
}

func (b *SQLiteBackend) write(ctx context.Context, key, value string, present bool) error {
	query := `
		INSERT INTO kv_store (key, value, present, origin, version, updated_at)
		VALUES (?, ?, ?, ?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			present = excluded.present,
			origin = excluded.origin,
			version = kv_store.version + 1,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := b.db.ExecContext(ctx, query, key, value, present, b.origin); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// row reads the full record for key; a missing row has version 0.
func (b *SQLiteBackend) row(ctx context.Context, key string) (Change, int64, error) {
	var (
		c       = Change{Key: key}
		version int64
	)
	err := b.db.QueryRowContext(ctx,
		"SELECT value, present, origin, version FROM kv_store WHERE key = ?", key,
	).Scan(&c.Value, &c.Present, &c.Origin, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return c, 0, nil
	}
	return c, version, err
}

func (b *SQLiteBackend) Watch(ctx context.Context, key string) (<-chan Change, error) {
	_, last, err := b.row(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read key version: %w", err)
	}

	box := newMailbox()
	go func() {
		defer box.close()

		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			c, version, err := b.row(ctx, key)
			if err != nil {
				if ctx.Err() == nil {
					b.logger.Warn("poll failed", "key", key, "error", err)
				}
				continue
			}
			if version == last {
				continue
			}
			last = version
			if c.Origin != b.origin {
				box.put(c)
			}
		}
	}()

	return box.ch, nil
}

// Close closes the database when the backend opened it.
func (b *SQLiteBackend) Close() error {
	if b.ownsDB {
		return b.db.Close()
	}
	return nil
}
