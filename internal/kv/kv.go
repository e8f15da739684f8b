package kv

import (
	"context"
	"fmt"
	"net/http"
)

// Store is the process-external key-value store backing both the credential
// vault and the order-digest cache. Keys are flat strings, values are opaque
// strings, and there is no built-in TTL: digest expiry is an application-level
// sibling key.
type Store interface {
	// Get retrieves a value. Returns the value, whether the key was present,
	// and any error. A missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores a value, overwriting any previous value for the key.
	Set(ctx context.Context, key string, value string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// UnavailableError indicates the key-value store itself could not be reached
// or refused the operation. It is fatal for the request in progress.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("key-value store unavailable during %s: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}

func (e UnavailableError) Status() (int, string) {
	return http.StatusServiceUnavailable, "storage unavailable"
}
