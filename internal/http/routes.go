package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig agrupa lo que el router necesita para armarse.
type RouterConfig struct {
	// Certificates registra las rutas /v1/certificates*.
	Certificates interface{ Register(chi.Router) }

	// MetricsHandler sirve /metrics (promhttp). Nil ⇒ sin endpoint.
	MetricsHandler http.Handler

	CORSAllowedOrigins []string
}

// NewRouter arma el router chi con los middlewares estándar.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithMetrics)
	r.Use(WithAccessLog)

	// Health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	if cfg.Certificates != nil {
		cfg.Certificates.Register(r)
	}

	var h http.Handler = r
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = WithCORS(h, cfg.CORSAllowedOrigins)
	}
	return h
}
