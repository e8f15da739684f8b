package kv

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/storewatch/storewatch-bridge/internal/config"
	"github.com/valkey-io/valkey-go"
)

// clientCacheWindow bounds the server-assisted client-side cache for reads.
// Server tracking invalidates entries on write, so a generous window is safe.
const clientCacheWindow = time.Minute

// Valkey implements Store on a Valkey server. Values are stored without
// expiry: entries live for the tenant's operational lifetime.
type Valkey struct {
	client valkey.Client
}

// NewValkey connects to the configured Valkey server.
func NewValkey(cfg config.ValkeyConfig) (*Valkey, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	opts := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		AuthCredentialsFn: staticCredentialsFn(cfg.Username, cfg.Password),
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	return &Valkey{client: client}, nil
}

// staticCredentialsFn returns an AuthCredentialsFn that always returns the
// configured username and password.
func staticCredentialsFn(username, password string) func(valkey.AuthCredentialsContext) (valkey.AuthCredentials, error) {
	return func(valkey.AuthCredentialsContext) (valkey.AuthCredentials, error) {
		return valkey.AuthCredentials{
			Username: username,
			Password: password,
		}, nil
	}
}

// Get retrieves a value using server-assisted client-side caching.
func (v *Valkey) Get(ctx context.Context, key string) (string, bool, error) {
	cmd := v.client.B().Get().Key(key).Cache()
	result := v.client.DoCache(ctx, cmd, clientCacheWindow)

	if err := result.Error(); err != nil {
		// Key not found is not an error in our semantics
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, UnavailableError{Op: "get", Err: err}
	}

	value, err := result.ToString()
	if err != nil {
		return "", false, UnavailableError{Op: "get", Err: err}
	}

	return value, true, nil
}

// Set stores a value with no expiry.
func (v *Valkey) Set(ctx context.Context, key string, value string) error {
	cmd := v.client.B().Set().Key(key).Value(value).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return UnavailableError{Op: "set", Err: err}
	}
	return nil
}

// Ping verifies the server is reachable.
func (v *Valkey) Ping(ctx context.Context) error {
	if err := v.client.Do(ctx, v.client.B().Ping().Build()).Error(); err != nil {
		return UnavailableError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the client connection.
func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
