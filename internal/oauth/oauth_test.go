package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/storewatch/storewatch-bridge/internal/config"
	"github.com/storewatch/storewatch-bridge/internal/credential"
	"github.com/storewatch/storewatch-bridge/internal/kv"
	"github.com/storewatch/storewatch-bridge/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenServer(t *testing.T) *httptest.Server {
	t.Helper()

	router := http.NewServeMux()
	router.HandleFunc("POST /oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "test-code", r.Form.Get("code"))

		testhelpers.WriteJSON(w, map[string]any{
			"access_token": "vended-token",
			"token_type":   "bearer",
			"store_domain": "shop.example.com",
		})
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func newTestExchanger(t *testing.T, tokenURL string, store kv.Store) *Exchanger {
	t.Helper()

	exchanger, err := New(config.OAuthConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		CallbackURL:  "http://localhost:3000/auth/callback",
		AuthURL:      "https://apps.getneto.com/oauth/v2/auth",
		TokenURL:     tokenURL,
	}, credential.NewVault(store))
	require.NoError(t, err)
	return exchanger
}

func TestNew_RequiresClientCredentials(t *testing.T) {
	_, err := New(config.OAuthConfig{ClientID: "id-only"}, credential.NewVault(kv.NewMemory(10)))
	require.Error(t, err)
}

func TestAuthorizeURL_CarriesStateAndClient(t *testing.T) {
	store := kv.NewMemory(10)
	exchanger := newTestExchanger(t, "https://apps.getneto.com/oauth/v2/token", store)

	raw, err := exchanger.AuthorizeURL()
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "apps.getneto.com", u.Host)
	assert.Equal(t, "/oauth/v2/auth", u.Path)
	assert.Equal(t, "test-client", u.Query().Get("client_id"))
	assert.NotEmpty(t, u.Query().Get("state"))
}

func TestComplete_StoresCredential(t *testing.T) {
	server := setupTokenServer(t)
	store := kv.NewMemory(10)
	exchanger := newTestExchanger(t, server.URL+"/oauth/v2/token", store)

	raw, err := exchanger.AuthorizeURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")

	tenant, err := exchanger.Complete(context.Background(), state, "test-code")
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", tenant)

	token, err := credential.NewVault(store).Load(context.Background(), "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "vended-token", token)
}

func TestComplete_RejectsUnknownState(t *testing.T) {
	server := setupTokenServer(t)
	exchanger := newTestExchanger(t, server.URL+"/oauth/v2/token", kv.NewMemory(10))

	_, err := exchanger.Complete(context.Background(), "never-issued", "test-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_StateIsSingleUse(t *testing.T) {
	server := setupTokenServer(t)
	store := kv.NewMemory(10)
	exchanger := newTestExchanger(t, server.URL+"/oauth/v2/token", store)

	raw, err := exchanger.AuthorizeURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")

	_, err = exchanger.Complete(context.Background(), state, "test-code")
	require.NoError(t, err)

	_, err = exchanger.Complete(context.Background(), state, "test-code")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestComplete_MissingStoreDomain(t *testing.T) {
	router := http.NewServeMux()
	router.HandleFunc("POST /oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		testhelpers.WriteJSON(w, map[string]any{
			"access_token": "vended-token",
			"token_type":   "bearer",
		})
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	exchanger := newTestExchanger(t, server.URL+"/oauth/v2/token", kv.NewMemory(10))

	raw, err := exchanger.AuthorizeURL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	_, err = exchanger.Complete(context.Background(), u.Query().Get("state"), "test-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store_domain")
}
