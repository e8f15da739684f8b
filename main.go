package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/config"
	"github.com/storewatch/storewatch-bridge/internal/credential"
	"github.com/storewatch/storewatch-bridge/internal/digest"
	"github.com/storewatch/storewatch-bridge/internal/kv"
	"github.com/storewatch/storewatch-bridge/internal/neto"
	"github.com/storewatch/storewatch-bridge/internal/oauth"
	"github.com/storewatch/storewatch-bridge/internal/observe"
	"github.com/storewatch/storewatch-bridge/internal/server"
)

func configureServerRoutes(cfg config.Config, store kv.Store) (http.Handler, error) {
	// wrap a mux such that HTTP telemetry is configured by default
	muxWithoutTelemetry := http.NewServeMux()
	mux := observe.NewMux(muxWithoutTelemetry)

	// The request body size is fairly limited to prevent accidental or
	// deliberate abuse. Given the current API shape, this is not configurable.
	requestLimitBytes := int64(20 << 10) // 20 KB
	requestLimiter := maxRequestSize(requestLimitBytes)

	widgetRouteMiddleware := alice.New(requestLimiter, allowWidgetOrigin)
	standardRouteMiddleware := alice.New(requestLimiter)

	// setup digest service and dependencies
	vault := credential.NewVault(store)

	fetcher, err := neto.New(cfg.Neto)
	if err != nil {
		return nil, fmt.Errorf("order API configuration failed: %w", err)
	}

	digests := digest.NewService(store, vault, fetcher.FetchDigest)

	exchanger, err := oauth.New(cfg.OAuth, vault)
	if err != nil {
		return nil, fmt.Errorf("oauth configuration failed: %w", err)
	}

	// the widget polls /history cross-origin from each storefront
	mux.Handle("GET /history", widgetRouteMiddleware.Then(handleHistory(digests.History)))
	mux.Handle("OPTIONS /history", widgetRouteMiddleware.Then(http.NotFoundHandler()))

	mux.Handle("GET /auth/connect", standardRouteMiddleware.Then(handleAuthConnect(exchanger)))
	mux.Handle("GET /auth/callback", standardRouteMiddleware.Then(handleAuthCallback(exchanger)))
	mux.Handle("GET /auth/success", standardRouteMiddleware.Then(handleAuthSuccess()))

	// healthchecks are not included in telemetry
	muxWithoutTelemetry.Handle("GET /healthcheck", standardRouteMiddleware.Then(handleHealthCheck(store)))

	return mux, nil
}

func main() {
	configureLogging()

	logBuildInfo()

	err := launchServer()
	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func launchServer() error {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	var hooks server.ShutdownHooks

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	hooks.AddContext("telemetry", shutdownTelemetry)

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.Server),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	// connect the key-value store; it backs both the credential vault and
	// the digest cache
	store, err := kv.NewFromConfig(cfg.Store)
	if err != nil {
		return fmt.Errorf("store configuration failed: %w", err)
	}
	hooks.Add("key-value store", store.Close)

	// setup routing and dependencies
	handler, err := configureServerRoutes(cfg, store)
	if err != nil {
		hooks.Execute(ctx)
		return fmt.Errorf("server routing configuration failed: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		MaxHeaderBytes:    20 << 10,         // 20 KB
		ReadHeaderTimeout: 20 * time.Second, // Prevent Slowloris attacks
	}

	err = server.Run(cfg.Server, srv, &hooks)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info
	log.Logger = log.Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ServerConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
