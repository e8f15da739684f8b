// Package oauth performs the Neto authorization-code exchange for a
// storefront. The exchange itself is delegated to the oauth2 library; this
// package binds the completed exchange to the credential vault.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/storewatch/storewatch-bridge/internal/config"
	"golang.org/x/oauth2"
)

// stateWindow is how long an issued state value remains redeemable.
const stateWindow = 10 * time.Minute

// ErrInvalidState indicates the callback's state parameter was not issued by
// this process, or has expired.
var ErrInvalidState = errors.New("oauth state invalid or expired")

// CredentialStore receives the access token once per completed exchange.
type CredentialStore interface {
	Store(ctx context.Context, tenant, token string) error
}

// Exchanger drives the authorization-code flow: it issues authorization URLs
// and exchanges callback codes for access tokens, storing each token under
// the store domain reported by the token endpoint.
type Exchanger struct {
	config *oauth2.Config
	vault  CredentialStore
	states *otter.Cache[string, struct{}]
}

func New(cfg config.OAuthConfig, vault CredentialStore) (*Exchanger, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client ID and secret must be configured for the OAuth exchange")
	}

	states := otter.Must(&otter.Options[string, struct{}]{
		MaximumSize:      1_000,
		ExpiryCalculator: otter.ExpiryCreating[string, struct{}](stateWindow),
	})

	return &Exchanger{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		vault:  vault,
		states: states,
	}, nil
}

// AuthorizeURL mints a fresh state value and returns the URL to send the
// storefront's browser to.
func (e *Exchanger) AuthorizeURL() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	state := base64.RawURLEncoding.EncodeToString(buf)
	e.states.Set(state, struct{}{})

	return e.config.AuthCodeURL(state), nil
}

// Complete redeems the callback's code for an access token and stores it for
// the tenant identified by the token response. The state must match a value
// issued by AuthorizeURL; each state is redeemable once.
func (e *Exchanger) Complete(ctx context.Context, state, code string) (string, error) {
	if _, ok := e.states.GetEntry(state); !ok {
		return "", ErrInvalidState
	}
	e.states.Invalidate(state)

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("authorization code exchange failed: %w", err)
	}

	tenant, ok := token.Extra("store_domain").(string)
	if !ok || tenant == "" {
		return "", errors.New("token response missing store_domain")
	}

	if err := e.vault.Store(ctx, tenant, token.AccessToken); err != nil {
		return "", err
	}

	return tenant, nil
}
