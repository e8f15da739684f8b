// Package digest implements the freshness-gated order digest cache. Each
// tenant's digest is persisted externally alongside an expiry timestamp; a
// read either serves the stored digest (fresh) or performs exactly one
// refresh (stale), with concurrent stale reads for the same tenant collapsed
// into a single upstream fetch.
package digest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/credential"
	"github.com/storewatch/storewatch-bridge/internal/kv"
	"github.com/storewatch/storewatch-bridge/internal/neto"
	"golang.org/x/sync/singleflight"
)

const (
	ordersKeySuffix = "#orders"
	expiryKeySuffix = "#expiry"

	// freshFor matches the upstream's 60-day TTL window.
	freshFor = 60 * 24 * time.Hour
)

// Fetcher retrieves and normalizes the tenant's recent orders using the
// given access token.
type Fetcher func(ctx context.Context, tenant, token string) ([]neto.OrderSummary, error)

// Service decides per tenant whether the stored digest is still valid,
// refreshing it from upstream when it is not. All authoritative state lives
// in the external store; the service itself holds no tenant data.
type Service struct {
	store kv.Store
	vault credential.Vault
	fetch Fetcher

	flight singleflight.Group
	now    func() time.Time
}

func NewService(store kv.Store, vault credential.Vault, fetch Fetcher) *Service {
	return &Service{
		store: store,
		vault: vault,
		fetch: fetch,
		now:   time.Now,
	}
}

// History returns the tenant's order digest, serving the stored value while
// it is within its validity window and refreshing it otherwise.
//
// A refresh failure is reported to the caller; the previous (stale) digest is
// deliberately not served in its place.
func (s *Service) History(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
	if tenant == "" {
		return nil, errors.New("tenant must not be empty")
	}

	summaries, fresh, err := s.stored(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if fresh {
		return summaries, nil
	}

	// At most one refresh per tenant runs at a time. Callers that arrive
	// while a refresh is in flight share its result; callers serialized
	// behind it re-check freshness and take the fresh path instead of
	// refreshing again.
	result, err, _ := s.flight.Do(tenant, func() (any, error) {
		summaries, fresh, err := s.stored(ctx, tenant)
		if err != nil {
			return nil, err
		}
		if fresh {
			return summaries, nil
		}
		return s.refresh(ctx, tenant)
	})
	if err != nil {
		return nil, err
	}

	return result.([]neto.OrderSummary), nil
}

// stored reads the tenant's digest and reports whether it can be served
// as-is. A missing or unparseable expiry, and a missing or corrupt digest
// blob, are all treated as stale: the caller falls through to a refresh.
// Store errors are returned directly.
func (s *Service) stored(ctx context.Context, tenant string) ([]neto.OrderSummary, bool, error) {
	expiryRaw, found, err := s.store.Get(ctx, tenant+expiryKeySuffix)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	expiry, err := time.Parse(time.RFC3339, expiryRaw)
	if err != nil {
		log.Warn().Str("tenant", tenant).Str("expiry", expiryRaw).
			Msg("stored expiry unparseable, forcing refresh")
		return nil, false, nil
	}

	// now == expiry is fresh: staleness is strictly past the window
	if s.now().After(expiry) {
		return nil, false, nil
	}

	blob, found, err := s.store.Get(ctx, tenant+ordersKeySuffix)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	var summaries []neto.OrderSummary
	if err := json.Unmarshal([]byte(blob), &summaries); err != nil {
		log.Warn().Str("tenant", tenant).Err(err).
			Msg("stored digest corrupt, forcing refresh")
		return nil, false, nil
	}

	return summaries, true, nil
}

// refresh fetches the tenant's orders from upstream and writes the new digest
// and expiry. Both writes must complete before the refresh succeeds. The two
// writes are not atomic: a crash between them leaves the expiry stale, which
// simply re-triggers a refresh on the next read.
func (s *Service) refresh(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
	token, err := s.vault.Load(ctx, tenant)
	if err != nil {
		return nil, err
	}

	summaries, err := s.fetch(ctx, tenant, token)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(summaries)
	if err != nil {
		return nil, fmt.Errorf("encoding digest for %s: %w", tenant, err)
	}

	if err := s.store.Set(ctx, tenant+ordersKeySuffix, string(blob)); err != nil {
		return nil, err
	}

	expiry := s.now().Add(freshFor).UTC().Format(time.RFC3339)
	if err := s.store.Set(ctx, tenant+expiryKeySuffix, expiry); err != nil {
		return nil, err
	}

	log.Info().Str("tenant", tenant).Int("orders", len(summaries)).
		Str("expiry", expiry).Msg("digest refreshed")

	return summaries, nil
}
