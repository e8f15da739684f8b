package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Neto    NetoConfig
	OAuth   OAuthConfig
	Observe ObserveConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=3000"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	OutgoingHTTPMaxIdleConns    int `env:"SERVER_OUTGOING_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"SERVER_OUTGOING_MAX_CONNS_PER_HOST, default=20"`
}

// StoreConfig specifies the backing key-value store configuration.
type StoreConfig struct {
	// Type selects the store implementation: "valkey" (default) or "memory".
	// The memory store is for development and testing only: credentials and
	// cached digests do not survive a restart.
	Type string `env:"STORE_TYPE, default=valkey"`

	// MemoryMaxEntries bounds the memory store. Ignored for valkey.
	MemoryMaxEntries int `env:"STORE_MEMORY_MAX_ENTRIES, default=10000"`

	Valkey ValkeyConfig
}

// ValkeyConfig specifies the Valkey connection.
type ValkeyConfig struct {
	// Address is the Valkey server address (host:port).
	Address string `env:"VALKEY_ADDRESS"`

	// TLS enables TLS connection to Valkey. Defaults to true so the secure
	// option is the default.
	TLS bool `env:"VALKEY_TLS, default=true"`

	// Username for Valkey authentication.
	Username string `env:"VALKEY_USERNAME"`

	// Password for Valkey authentication.
	Password string `env:"VALKEY_PASSWORD"`
}

// NetoConfig specifies access to the upstream Neto order API.
type NetoConfig struct {
	APIURL string // internal only: overrides the per-store URL for tests

	// APIKey is sent as X_ACCESS_KEY on every order API request. For a
	// registered Neto addon this is the same value as the OAuth client ID.
	APIKey string `env:"NETO_CLIENT_ID, required"`

	// FetchTimeoutSeconds bounds a single upstream order API call.
	FetchTimeoutSeconds int `env:"NETO_FETCH_TIMEOUT_SECS, default=10"`
}

// OAuthConfig specifies the Neto OAuth authorization-code exchange.
type OAuthConfig struct {
	ClientID     string `env:"NETO_CLIENT_ID, required"`
	ClientSecret string `env:"NETO_CLIENT_SECRET, required"`
	CallbackURL  string `env:"OAUTH_CALLBACK_URL, default=http://localhost:3000/auth/callback"`

	AuthURL  string `env:"OAUTH_AUTH_URL, default=https://apps.getneto.com/oauth/v2/auth"`
	TokenURL string `env:"OAUTH_TOKEN_URL, default=https://apps.getneto.com/oauth/v2/token"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=storewatch-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Store.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid store configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the store configuration is usable.
func (c *StoreConfig) Validate() error {
	switch c.Type {
	case "valkey":
		if c.Valkey.Address == "" {
			return fmt.Errorf("VALKEY_ADDRESS required when STORE_TYPE=valkey")
		}
	case "memory":
		if c.MemoryMaxEntries <= 0 {
			return fmt.Errorf("STORE_MEMORY_MAX_ENTRIES must be positive")
		}
	default:
		return fmt.Errorf("unknown store type %q: expected valkey or memory", c.Type)
	}

	return nil
}
