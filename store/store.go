package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kbukum/nodeflow/errors"
	"github.com/kbukum/nodeflow/observability"
)

// ChannelPrefix is the reserved key namespace for named channels.
const ChannelPrefix = "channel:"

// Store is the keyed value map shared across passes.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string) error
	Clear() error
	Keys() []string
	Snapshot() map[string]any
}

// ChannelKey returns the store key for a named channel.
func ChannelKey(name string) string {
	return ChannelPrefix + name
}

// IsChannelKey reports whether key belongs to the channel namespace.
func IsChannelKey(key string) bool {
	return strings.HasPrefix(key, ChannelPrefix)
}

// Read retrieves a typed value from s.
func Read[T any](s Store, key string) (T, error) {
	var zero T
	raw, ok := s.Get(key)
	if !ok {
		return zero, errors.NotFound("store entry", key)
	}
	val, ok := raw.(T)
	if !ok {
		return zero, errors.InvalidFormat(key, fmt.Sprintf("%T (got %T)", zero, raw))
	}
	return val, nil
}

// Load replaces the contents of s with entries.
func Load(s Store, entries map[string]any) error {
	if err := s.Clear(); err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.Set(k, entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]any)}
}

// Get retrieves a value by key.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Set stores a value by key.
func (m *Memory) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]any)
	return nil
}

// Keys returns the sorted keys.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the contents.
func (m *Memory) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// CheckHealth reports the store as up with its entry count.
func (m *Memory) CheckHealth(_ context.Context) observability.Health {
	m.mu.RLock()
	n := len(m.data)
	m.mu.RUnlock()
	return observability.Health{
		Name:    "store",
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"backend": "memory", "entries": fmt.Sprint(n)},
	}
}
