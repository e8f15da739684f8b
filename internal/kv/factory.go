package kv

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/config"
)

// NewFromConfig creates a store implementation based on the provided
// configuration. The store type must be either "valkey" or "memory"; any
// other value returns an error.
func NewFromConfig(cfg config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "valkey":
		log.Info().
			Str("store_type", "valkey").
			Str("address", cfg.Valkey.Address).
			Bool("tls", cfg.Valkey.TLS).
			Msg("initializing key-value store")

		store, err := NewValkey(cfg.Valkey)
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey store: %w", err)
		}

		return NewInstrumented(store, "valkey"), nil

	case "memory":
		log.Info().
			Str("store_type", "memory").
			Int("max_entries", cfg.MemoryMaxEntries).
			Msg("initializing key-value store")

		return NewInstrumented(NewMemory(cfg.MemoryMaxEntries), "memory"), nil

	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
