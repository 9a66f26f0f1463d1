package store

import (
	"context"

	"github.com/desertthunder/isoca/internal/shared"
)

// NoopBackend stands in for storage that could not be opened.
//
// Reads find nothing and writes fail with [shared.ErrStorageUnavailable], which [TokenStore]
// logs and drops. The session therefore degrades to "always unauthenticated".
type NoopBackend struct {
	origin string
}

// NewNoopBackend creates a [NoopBackend].
func NewNoopBackend() *NoopBackend {
	return &NoopBackend{origin: shared.GenerateID()}
}

func (b *NoopBackend) Origin() string { return b.origin }

func (b *NoopBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (b *NoopBackend) Set(context.Context, string, string) error {
	return shared.ErrStorageUnavailable
}

func (b *NoopBackend) Delete(context.Context, string) error {
	return nil
}

func (b *NoopBackend) Watch(ctx context.Context, _ string) (<-chan Change, error) {
	ch := make(chan Change)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (b *NoopBackend) Close() error { return nil }
