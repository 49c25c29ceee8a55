// internal/scores/kv.go
//
// Flat string key-value persistence backing best scores and leaderboards.
// Implementations:
//   - memoryKV: RWMutex map, state lost on restart (dev, tests, terminal client).
//   - SQLiteKV: kv table managed by internal/db migrations.
//   - prefixed: namespaces keys per player on top of another KV.

package scores

import (
	"context"
	"sync"
)

// KV is a flat string key-value store.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces the value for key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// memoryKV is an in-memory map-based KV.
type memoryKV struct {
	mu   sync.RWMutex      // guards data
	data map[string]string // keyed by full key
}

// NewMemoryKV constructs an empty in-memory KV.
func NewMemoryKV() KV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type prefixed struct {
	kv     KV
	prefix string
}

// WithPrefix scopes every key of kv under prefix (e.g. "user:<id>:").
func WithPrefix(kv KV, prefix string) KV {
	return &prefixed{kv: kv, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, p.prefix+key)
}
