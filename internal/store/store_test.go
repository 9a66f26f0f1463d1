package store

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "watch channel closed early")
		return c
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

// exerciseBackends runs the shared contract against two backends that see the same data
// through different origins.
func exerciseBackends(t *testing.T, a, b Backend) {
	t.Run("Get Missing Key", func(t *testing.T) {
		_, ok, err := a.Get(context.Background(), "missing")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Origins Differ", func(t *testing.T) {
		require.NotEmpty(t, a.Origin())
		require.NotEqual(t, a.Origin(), b.Origin())
	})

	t.Run("Set Visible To Other Origin", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, a.Set(ctx, "token", "tok1"))

		value, ok, err := b.Get(ctx, "token")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "tok1", value)

		require.NoError(t, b.Delete(ctx, "token"))
		_, ok, err = a.Get(ctx, "token")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Watch Skips Own Writes", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := a.Watch(ctx, "watched")
		require.NoError(t, err)

		require.NoError(t, a.Set(ctx, "watched", "mine"))
		require.NoError(t, b.Set(ctx, "watched", "theirs"))

		c := receive(t, changes)
		require.Equal(t, "theirs", c.Value)
		require.True(t, c.Present)
		require.Equal(t, b.Origin(), c.Origin)
		require.Equal(t, "watched", c.Key)

		require.NoError(t, a.Set(ctx, "watched", "mine again"))
		require.NoError(t, b.Delete(ctx, "watched"))

		c = receive(t, changes)
		require.False(t, c.Present)
		require.Equal(t, b.Origin(), c.Origin)
	})

	t.Run("Watch Closes With Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		changes, err := a.Watch(ctx, "closing")
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-changes:
				return !ok
			default:
				return false
			}
		}, waitFor, 10*time.Millisecond)
	})
}

func TestMemoryBackend(t *testing.T) {
	hub := NewMemoryHub()
	exerciseBackends(t, hub.Open(), hub.Open())
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isoca.db")
	opts := SQLiteOptions{PollInterval: 10 * time.Millisecond, Logger: shared.NewLogger(io.Discard)}

	a, err := OpenSQLite(path, opts)
	require.NoError(t, err)
	defer a.Close()

	b, err := OpenSQLite(path, opts)
	require.NoError(t, err)
	defer b.Close()

	exerciseBackends(t, a, b)

	t.Run("Cleared Row Keeps Writer", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, a.Set(ctx, "kept", "v"))
		require.NoError(t, b.Delete(ctx, "kept"))

		c, version, err := a.row(ctx, "kept")
		require.NoError(t, err)
		require.Equal(t, int64(2), version)
		require.Equal(t, b.Origin(), c.Origin)
		require.False(t, c.Present)
	})
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := shared.NewLogger(io.Discard)

	a, err := OpenRedis(context.Background(), "redis://"+mr.Addr(), "isoca:", logger)
	require.NoError(t, err)
	defer a.Close()

	b := NewRedisBackend(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "isoca:", logger)

	exerciseBackends(t, a, b)

	t.Run("Values Use Prefix", func(t *testing.T) {
		require.NoError(t, a.Set(context.Background(), "spotify_access_token", "tok"))
		value, err := mr.Get("isoca:spotify_access_token")
		require.NoError(t, err)
		require.Equal(t, "tok", value)
	})

	t.Run("Unreachable Server", func(t *testing.T) {
		_, err := OpenRedis(context.Background(), "redis://127.0.0.1:1/0", "isoca:", logger)
		require.ErrorIs(t, err, shared.ErrStorageUnavailable)

		_, err = OpenRedis(context.Background(), "not a url", "isoca:", logger)
		require.ErrorIs(t, err, shared.ErrStorageUnavailable)
	})
}

// brokenBackend fails every operation.
type brokenBackend struct{ NoopBackend }

var errBroken = errors.New("disk on fire")

func (brokenBackend) Get(context.Context, string) (string, bool, error) { return "", false, errBroken }
func (brokenBackend) Set(context.Context, string, string) error         { return errBroken }
func (brokenBackend) Delete(context.Context, string) error              { return errBroken }
func (brokenBackend) Watch(context.Context, string) (<-chan Change, error) {
	return nil, errBroken
}

func TestTokenStore(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Round Trip", func(t *testing.T) {
		ctx := context.Background()
		s := NewTokenStore(NewMemoryHub().Open(), "spotify_access_token", logger)

		_, ok := s.Get(ctx)
		require.False(t, ok)

		s.Set(ctx, "tok1")
		token, ok := s.Get(ctx)
		require.True(t, ok)
		require.Equal(t, "tok1", token)

		s.Clear(ctx)
		_, ok = s.Get(ctx)
		require.False(t, ok)
	})

	t.Run("Empty Token Reads As Absent", func(t *testing.T) {
		ctx := context.Background()
		backend := NewMemoryHub().Open()
		require.NoError(t, backend.Set(ctx, "k", ""))

		_, ok := NewTokenStore(backend, "k", logger).Get(ctx)
		require.False(t, ok)
	})

	t.Run("Set Empty Clears", func(t *testing.T) {
		ctx := context.Background()
		s := NewTokenStore(NewMemoryHub().Open(), "k", logger)
		s.Set(ctx, "tok")
		s.Set(ctx, "")
		_, ok := s.Get(ctx)
		require.False(t, ok)
	})

	t.Run("Cross Origin Watch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewMemoryHub()
		tab1 := NewTokenStore(hub.Open(), "k", logger)
		tab2 := NewTokenStore(hub.Open(), "k", logger)

		changes := tab1.Watch(ctx)
		tab1.Set(ctx, "own")
		tab2.Set(ctx, "other")

		c := receive(t, changes)
		require.Equal(t, "other", c.Value)
		require.Equal(t, tab2.Origin(), c.Origin)
	})

	t.Run("Broken Backend Degrades", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		s := NewTokenStore(&brokenBackend{}, "k", logger)

		require.NotPanics(t, func() {
			s.Set(ctx, "tok")
			s.Clear(ctx)
		})
		_, ok := s.Get(ctx)
		require.False(t, ok)

		changes := s.Watch(ctx)
		cancel()
		require.Eventually(t, func() bool {
			_, ok := <-changes
			return !ok
		}, waitFor, 10*time.Millisecond)
	})

	t.Run("Noop Backend", func(t *testing.T) {
		ctx := context.Background()
		s := NewTokenStore(NewNoopBackend(), "k", logger)
		s.Set(ctx, "tok")
		_, ok := s.Get(ctx)
		require.False(t, ok)
	})
}

func TestOpen(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		b, err := Open(ctx, shared.StoreConfig{Driver: "memory"}, logger)
		require.NoError(t, err)
		require.IsType(t, &MemoryBackend{}, b)
	})

	t.Run("SQLite", func(t *testing.T) {
		b, err := Open(ctx, shared.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")}, logger)
		require.NoError(t, err)
		require.IsType(t, &SQLiteBackend{}, b)
		require.NoError(t, b.Close())
	})

	t.Run("Unknown Driver Falls Back", func(t *testing.T) {
		b, err := Open(ctx, shared.StoreConfig{Driver: "etcd"}, logger)
		require.ErrorIs(t, err, shared.ErrUnknownDriver)
		require.IsType(t, &NoopBackend{}, b)
	})

	t.Run("Unopenable SQLite Falls Back", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "dir", "x.db")
		b, err := Open(ctx, shared.StoreConfig{Driver: "sqlite", Path: path}, logger)
		require.ErrorIs(t, err, shared.ErrStorageUnavailable)
		require.IsType(t, &NoopBackend{}, b)
	})
}
