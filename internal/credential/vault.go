// Package credential owns the per-tenant OAuth access token. The token is
// written once per completed authorization exchange and read on every digest
// refresh; the vault never expires a token itself.
package credential

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/kv"
)

const tokenKeySuffix = "#token"

// NotAuthorizedError indicates the tenant has never completed the OAuth
// exchange: there is no credential on file. Callers must treat this as a hard
// precondition failure for a refresh, not as an empty credential.
type NotAuthorizedError struct {
	Tenant string
}

func (e NotAuthorizedError) Error() string {
	return fmt.Sprintf("store %q has not authorized this app", e.Tenant)
}

func (e NotAuthorizedError) Status() (int, string) {
	return http.StatusUnauthorized, "store not authorized"
}

// Vault reads and writes the access token for each tenant, keyed by the
// store's domain name.
type Vault struct {
	store kv.Store
}

func NewVault(store kv.Store) Vault {
	return Vault{store: store}
}

// Store durably writes the tenant's access token, unconditionally overwriting
// any previous token. Token contents are not validated.
func (v Vault) Store(ctx context.Context, tenant, token string) error {
	if tenant == "" {
		return fmt.Errorf("tenant must not be empty")
	}

	if err := v.store.Set(ctx, tenant+tokenKeySuffix, token); err != nil {
		return fmt.Errorf("storing credential for %s: %w", tenant, err)
	}

	log.Info().Str("tenant", tenant).Msg("credential stored")
	return nil
}

// Load reads the tenant's access token. Returns NotAuthorizedError when no
// credential is on file.
func (v Vault) Load(ctx context.Context, tenant string) (string, error) {
	if tenant == "" {
		return "", fmt.Errorf("tenant must not be empty")
	}

	token, found, err := v.store.Get(ctx, tenant+tokenKeySuffix)
	if err != nil {
		return "", fmt.Errorf("loading credential for %s: %w", tenant, err)
	}
	if !found {
		return "", NotAuthorizedError{Tenant: tenant}
	}

	return token, nil
}
