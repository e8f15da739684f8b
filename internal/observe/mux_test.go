package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storewatch/storewatch-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteTag(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
	}{
		{name: "get route", pattern: "GET /history", expected: "/history"},
		{name: "post route", pattern: "POST /auth/callback", expected: "/auth/callback"},
		{name: "preflight route", pattern: "OPTIONS /history", expected: "/history"},
		{name: "bare path", pattern: "/healthcheck", expected: "/healthcheck"},
		{name: "unregistered method", pattern: "FETCH /history", expected: "FETCH /history"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, routeTag(tt.pattern))
		})
	}
}

func TestMux_RoutesToWrappedHandler(t *testing.T) {
	inner := http.NewServeMux()
	mux := NewMux(inner)

	called := false
	mux.Handle("GET /history", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPTransport_DisabledReturnsWrapped(t *testing.T) {
	wrapped := http.DefaultTransport

	rt := HTTPTransport(wrapped, config.ObserveConfig{Enabled: false})
	assert.Same(t, wrapped, rt)

	rt = HTTPTransport(wrapped, config.ObserveConfig{Enabled: true, HTTPTransportEnabled: false})
	assert.Same(t, wrapped, rt)
}

func TestHTTPTransport_EnabledWrapsTransport(t *testing.T) {
	wrapped := http.DefaultTransport

	rt := HTTPTransport(wrapped, config.ObserveConfig{
		Enabled:              true,
		HTTPTransportEnabled: true,
	})
	assert.NotSame(t, wrapped, rt)
}

func TestHTTPTransport_ConnectionTraceRoundTrips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rt := HTTPTransport(http.DefaultTransport, config.ObserveConfig{
		Enabled:                    true,
		HTTPTransportEnabled:       true,
		HTTPConnectionTraceEnabled: true,
	})

	client := &http.Client{Transport: rt}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConfigure_DisabledIsNoop(t *testing.T) {
	shutdown, err := Configure(context.Background(), config.ObserveConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
