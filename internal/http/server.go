package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func Start(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return srv.ListenAndServe()
}

// routePattern retorna el patrón chi de la ruta (ej: /v1/certificates/{serial})
// para no explotar la cardinalidad de las métricas con serials reales.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
