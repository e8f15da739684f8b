package kv

import (
	"context"

	"github.com/maypok86/otter/v2"
)

// Memory is an in-memory Store implementation using otter. It is bounded by
// entry count rather than TTL: the store contract has no built-in expiry.
// Intended for development and tests; state does not survive a restart.
type Memory struct {
	cache *otter.Cache[string, string]
}

// NewMemory creates a bounded in-memory store.
func NewMemory(maxEntries int) *Memory {
	cache := otter.Must(&otter.Options[string, string]{
		MaximumSize: maxEntries,
	})

	return &Memory{cache: cache}
}

// Get retrieves a value from the store.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		return "", false, nil
	}

	return entry.Value, true, nil
}

// Set stores a value, overwriting any previous value.
func (m *Memory) Set(ctx context.Context, key string, value string) error {
	m.cache.Set(key, value)
	return nil
}

// Ping always succeeds: the store is in-process.
func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// Close discards all entries.
func (m *Memory) Close() error {
	m.cache.InvalidateAll()
	return nil
}
