package store

import (
	"context"
	"sync"

	"github.com/desertthunder/isoca/internal/shared"
)

// MemoryHub is process-local storage shared by every [MemoryBackend] opened from it.
type MemoryHub struct {
	mu       sync.Mutex
	values   map[string]string
	watchers map[int]memoryWatcher
	nextID   int
}

type memoryWatcher struct {
	key    string
	origin string
	box    *mailbox
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		values:   make(map[string]string),
		watchers: make(map[int]memoryWatcher),
	}
}

// Open returns a backend with a fresh origin on this hub.
func (h *MemoryHub) Open() *MemoryBackend {
	return &MemoryBackend{hub: h, origin: shared.GenerateID()}
}

func (h *MemoryHub) write(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.Present {
		h.values[c.Key] = c.Value
	} else {
		delete(h.values, c.Key)
	}

	for _, w := range h.watchers {
		if w.key == c.Key && w.origin != c.Origin {
			w.box.put(c)
		}
	}
}

// MemoryBackend implements [Backend] on a [MemoryHub].
type MemoryBackend struct {
	hub    *MemoryHub
	origin string
}

func (b *MemoryBackend) Origin() string { return b.origin }

func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.hub.mu.Lock()
	defer b.hub.mu.Unlock()
	v, ok := b.hub.values[key]
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.hub.write(Change{Key: key, Value: value, Present: true, Origin: b.origin})
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.hub.write(Change{Key: key, Origin: b.origin})
	return nil
}

func (b *MemoryBackend) Watch(ctx context.Context, key string) (<-chan Change, error) {
	box := newMailbox()

	b.hub.mu.Lock()
	id := b.hub.nextID
	b.hub.nextID++
	b.hub.watchers[id] = memoryWatcher{key: key, origin: b.origin, box: box}
	b.hub.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.hub.mu.Lock()
		delete(b.hub.watchers, id)
		b.hub.mu.Unlock()
		box.close()
	}()

	return box.ch, nil
}

func (b *MemoryBackend) Close() error { return nil }
