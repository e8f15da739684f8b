package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/config"
)

type hookDefinition struct {
	name string
	fn   func(context.Context) error
}

// ShutdownHooks manages a collection of hooks to be executed during application shutdown.
// Hooks are executed in the order they were added, and execution continues even if a hook fails.
type ShutdownHooks struct {
	hooks []hookDefinition
}

// AddContext registers a shutdown hook that receives a context parameter.
// The hook will be executed during shutdown with a context that may have a deadline.
// Nil hooks are ignored with a warning logged.
func (s *ShutdownHooks) AddContext(name string, hook func(context.Context) error) {
	if s.hooks == nil {
		s.hooks = make([]hookDefinition, 0, 5)
	}
	if hook == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	s.hooks = append(s.hooks, hookDefinition{name: name, fn: hook})
}

// Add registers a simple shutdown hook that does not need a context parameter.
// The hook is automatically wrapped to conform to the context-based signature.
// Nil hooks are ignored with a warning logged.
func (s *ShutdownHooks) Add(name string, hook func() error) {
	if hook == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	s.AddContext(name, func(context.Context) error {
		return hook()
	})
}

// Execute runs all registered shutdown hooks in the order they were added.
// Each hook is executed with the provided context, and execution continues even if a hook fails.
// Success and failure of each hook is logged appropriately.
func (s *ShutdownHooks) Execute(ctx context.Context) {
	l := log.Ctx(ctx)
	for _, hook := range s.hooks {
		hookLog := l.With().Str("hook", hook.name).Logger()

		hookLog.Info().Msg("shutdown started")
		if err := hook.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
		} else {
			hookLog.Info().Msg("shutdown complete")
		}
	}
}

// Run serves the supplied HTTP server until SIGINT/SIGTERM, then drains it
// within the configured shutdown timeout and executes the shutdown hooks.
func Run(cfg config.ServerConfig, srv *http.Server, hooks *ShutdownHooks) error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		// startup failure: hooks still run so partially-initialized
		// resources are released
		hooks.Execute(context.Background())
		return err

	case <-notifyCtx.Done():
		log.Info().Msg("shutdown signal received")
	}

	timeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn().Err(err).Msg("server drain failed")
	}

	hooks.Execute(ctx)

	return err
}
