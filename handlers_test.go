package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/storewatch/storewatch-bridge/internal/credential"
	"github.com/storewatch/storewatch-bridge/internal/kv"
	"github.com/storewatch/storewatch-bridge/internal/neto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantFromOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		expected string
	}{
		{name: "https origin", origin: "https://shop.example.com", expected: "shop.example.com"},
		{name: "http origin", origin: "http://shop.example.com", expected: "shop.example.com"},
		{name: "trailing slash", origin: "https://shop.example.com/", expected: "shop.example.com"},
		{name: "no origin", origin: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/history", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, tenantFromOrigin(r))
		})
	}
}

func TestHandleHistory_Success(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		assert.Equal(t, "shop.example.com", tenant)
		return []neto.OrderSummary{
			{DatePlaced: "2024-01-01T00:00:00Z", SKU: "A1", Name: "Widget", City: "Perth"},
		}, nil
	}

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	handleHistory(provider).ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t,
		`[{"date_placed":"2024-01-01T00:00:00Z","sku":"A1","name":"Widget","city":"Perth"}]`,
		rec.Body.String())
}

func TestHandleHistory_EmptyDigestIsAnArray(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		return nil, nil
	}

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	handleHistory(provider).ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleHistory_MissingOrigin(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		t.Fatal("provider must not be called without a tenant")
		return nil, nil
	}

	rec := httptest.NewRecorder()
	handleHistory(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory_NotAuthorized(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		return nil, credential.NotAuthorizedError{Tenant: tenant}
	}

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	handleHistory(provider).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"store not authorized"}`, rec.Body.String())
}

func TestHandleHistory_UpstreamFailure(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		return nil, neto.UpstreamError{Tenant: tenant, Err: errors.New("connection reset")}
	}

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	handleHistory(provider).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHistory_UnclassifiedErrorIs500(t *testing.T) {
	provider := func(ctx context.Context, tenant string) ([]neto.OrderSummary, error) {
		return nil, errors.New("unexpected")
	}

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	handleHistory(provider).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealthCheck(kv.NewMemory(10)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

type unreachableStore struct {
	kv.Store
}

func (unreachableStore) Ping(context.Context) error {
	return kv.UnavailableError{Op: "ping", Err: errors.New("connection refused")}
}

func TestHandleHealthCheck_StoreDown(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealthCheck(unreachableStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAllowWidgetOrigin_ReflectsOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	allowWidgetOrigin(next).ServeHTTP(rec, r)

	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestAllowWidgetOrigin_Preflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})

	r := httptest.NewRequest(http.MethodOptions, "/history", nil)
	r.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()

	allowWidgetOrigin(next).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestHandleAuthSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	handleAuthSuccess().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/success", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully authenticated!", rec.Body.String())
}

func TestErrorStatus_Default(t *testing.T) {
	status, message := errorStatus(errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), message)
}

func TestErrorStatus_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("outer"), credential.NotAuthorizedError{Tenant: "shop.example.com"})

	status, _ := errorStatus(err)
	assert.Equal(t, http.StatusUnauthorized, status)
}
