package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/storewatch/storewatch-bridge/internal/kv"
	"github.com/storewatch/storewatch-bridge/internal/neto"
	"github.com/storewatch/storewatch-bridge/internal/oauth"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// historyProvider returns the order digest for a tenant.
type historyProvider func(ctx context.Context, tenant string) ([]neto.OrderSummary, error)

// tenantFromOrigin derives the tenant identity from the request's declared
// origin: the store's domain name, stripped of scheme.
func tenantFromOrigin(r *http.Request) string {
	origin := r.Header.Get("Origin")
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	return strings.TrimSuffix(origin, "/")
}

func handleHistory(history historyProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		tenant := tenantFromOrigin(r)
		if tenant == "" {
			log.Info().Msg("history request without an origin header")
			requestError(w, http.StatusBadRequest)
			return
		}

		summaries, err := history(r.Context(), tenant)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Str("tenant", tenant).Err(err).Msg("digest read failed")
			writeJSONError(w, status, message)
			return
		}

		// the widget expects an array even when there are no recent orders
		if summaries == nil {
			summaries = []neto.OrderSummary{}
		}

		marshalledResponse, err := json.Marshal(summaries)
		if err != nil {
			requestError(w, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, err = w.Write(marshalledResponse)
		if err != nil {
			// record failure to log: trying to respond to the client at this
			// point will likely fail
			log.Info().Msgf("failed to write response: %v\n", err)
			return
		}
	})
}

func handleAuthConnect(exchanger *oauth.Exchanger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		location, err := exchanger.AuthorizeURL()
		if err != nil {
			log.Info().Err(err).Msg("authorization URL generation failed")
			requestError(w, http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, location, http.StatusFound)
	})
}

func handleAuthCallback(exchanger *oauth.Exchanger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		code := r.URL.Query().Get("code")
		if code == "" {
			requestError(w, http.StatusBadRequest)
			return
		}

		tenant, err := exchanger.Complete(r.Context(), r.URL.Query().Get("state"), code)
		if err != nil {
			if errors.Is(err, oauth.ErrInvalidState) {
				requestError(w, http.StatusForbidden)
				return
			}
			status, message := errorStatus(err)
			log.Info().Err(err).Msg("authorization exchange failed")
			writeJSONError(w, status, message)
			return
		}

		log.Info().Str("tenant", tenant).Msg("store authorized")
		http.Redirect(w, r, "/auth/success", http.StatusFound)
	})
}

func handleAuthSuccess() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Successfully authenticated!"))
	})
}

func handleHealthCheck(store kv.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		if err := store.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("healthcheck: store unreachable")
			requestError(w, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// allowWidgetOrigin reflects the request origin so the storefront widget can
// call the read endpoint cross-origin. Responses vary by origin.
func allowWidgetOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// At this point the status code has been written, so we can only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func requestError(w http.ResponseWriter, statusCode int) {
	http.Error(w, http.StatusText(statusCode), statusCode)
}

// drainRequestBody drains the request body by reading and discarding the contents.
// This is useful to ensure the request body is fully consumed, which is important
// for connection reuse in HTTP/1 clients.
func drainRequestBody(r *http.Request) {
	if r.Body != nil {
		// 5 MB max: after this we'll assume the client is broken or malicious
		// and close the connection
		io.CopyN(io.Discard, r.Body, 5*1024*1024)
	}
}
