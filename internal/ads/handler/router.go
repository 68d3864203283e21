package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/middleware"
)

// RouterConfig collects the optional pieces of the HTTP surface. Nil fields
// leave their routes out.
type RouterConfig struct {
	Health    *health.Checker
	Analytics *analytics.Handler
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Timeout   time.Duration

	// CORSOrigins enables CORS on /api/v1 when non-empty.
	CORSOrigins []string

	// Limiter rate limits /api/v1 per client IP when set.
	Limiter *pkgmw.Limiter
}

// NewRouter builds the service's HTTP handler.
//
// Route table:
//
//	GET /api/v1/ads?q=             select ads for a free-text query
//	GET /api/v1/ads/{adID}         one ad by id
//	GET /api/v1/ingestion/report   the startup ingestion report
//	GET /api/v1/analytics/stats    in-process analytics snapshot
//	GET /health/live, /health/ready
//	GET /metrics
//
// Middleware chain (outermost first):
//
//	RequestID -> AccessLog -> Metrics -> [CORS -> RateLimit -> Timeout] -> handler
//
// The bracketed middleware applies to /api/v1 only.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.AccessLog)
	r.Use(pkgmw.Metrics(cfg.Metrics))

	r.Route("/api/v1", func(r chi.Router) {
		if len(cfg.CORSOrigins) > 0 {
			r.Use(pkgmw.CORS(pkgmw.ReadOnlyCORSConfig(cfg.CORSOrigins)))
		}
		if cfg.Limiter != nil {
			r.Use(pkgmw.RateLimit(cfg.Limiter))
		}
		if cfg.Timeout > 0 {
			r.Use(pkgmw.Timeout(cfg.Timeout))
		}
		r.Get("/ads", h.SelectAds)
		r.Get("/ads/{adID}", h.GetAd)
		r.Get("/ingestion/report", h.IngestionReport)
		if cfg.Analytics != nil {
			r.Get("/analytics/stats", cfg.Analytics.Stats)
		}
	})

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LiveHandler())
		r.Get("/health/ready", cfg.Health.ReadyHandler())
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}
	return r
}
