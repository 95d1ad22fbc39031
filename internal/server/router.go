package server

import (
	"net/http"
	"time"

	"github.com/readscape/readscape/pkg/health"
	"github.com/readscape/readscape/pkg/metrics"
	"github.com/readscape/readscape/pkg/middleware"
)

// NewRouter builds the full HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /api/v1/search              → title search
//	GET    /api/v1/timerec             → time-budget suggestions
//	GET    /api/v1/recommendations     → collaborative recommendations
//	GET    /api/v1/liked               → list liked books
//	POST   /api/v1/liked               → like a book
//	DELETE /api/v1/liked/{id}          → unlike a book
//	GET    /api/v1/stats               → aggregated usage stats
//	GET    /api/v1/cache/stats         → search cache hit/miss counters
//	POST   /api/v1/cache/invalidate    → flush the search cache
//	GET    /health/live                → liveness
//	GET    /health/ready               → readiness
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → Timeout → mux
func NewRouter(h *Handler, checker *health.Checker, m *metrics.Metrics, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/timerec", h.TimeRec)
	mux.HandleFunc("GET /api/v1/recommendations", h.Recommend)

	mux.HandleFunc("GET /api/v1/liked", h.ListLiked)
	mux.HandleFunc("POST /api/v1/liked", h.Like)
	mux.HandleFunc("DELETE /api/v1/liked/{id}", h.Unlike)

	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if requestTimeout > 0 {
		// Recommendation runs scan the interaction log twice and may take
		// minutes; they are exempt from the request timeout.
		timed := middleware.Timeout(requestTimeout)(chain)
		untimed := chain
		chain = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/recommendations" {
				untimed.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)
	return chain
}
