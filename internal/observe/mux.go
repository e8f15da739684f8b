package observe

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Mux registers handlers on the wrapped ServeMux with HTTP telemetry
// attached, tagging each span with the route's resource path.
type Mux struct {
	wrapped *http.ServeMux
}

func NewMux(wrapped *http.ServeMux) *Mux {
	return &Mux{
		wrapped: wrapped,
	}
}

func (mux *Mux) Handle(pattern string, handler http.Handler) {
	mux.wrapped.Handle(pattern, otelhttp.NewHandler(handler, routeTag(pattern)))
}

func (mux *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.wrapped.ServeHTTP(w, r)
}

// routeTag strips the leading method from a method-qualified ServeMux
// pattern ("GET /history"): spans are tagged by resource path alone.
func routeTag(pattern string) string {
	method, resource, hasMethod := strings.Cut(pattern, " ")
	if !hasMethod {
		return pattern
	}

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodOptions:
		return resource
	}
	return pattern
}
