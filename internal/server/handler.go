// Package server exposes the reading service over HTTP: title search,
// time-budget suggestions, collaborative recommendations, the liked list,
// and usage stats.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/internal/events"
	"github.com/readscape/readscape/internal/liked"
	"github.com/readscape/readscape/internal/recommend"
	"github.com/readscape/readscape/internal/search"
	"github.com/readscape/readscape/internal/search/cache"
	"github.com/readscape/readscape/internal/timerec"
	apperrors "github.com/readscape/readscape/pkg/errors"
	"github.com/readscape/readscape/pkg/logger"
	"github.com/readscape/readscape/pkg/metrics"
)

type Handler struct {
	catalog     *catalog.Catalog
	index       *search.Index
	cache       *cache.QueryCache
	shelf       *timerec.Shelf
	recommender *recommend.Recommender
	likedStore  liked.Store
	collector   *events.Collector
	aggregator  *events.Aggregator
	metrics     *metrics.Metrics
	defaultTopK int
	maxResults  int
	logger      *slog.Logger
}

type Options struct {
	Catalog     *catalog.Catalog
	Index       *search.Index
	Cache       *cache.QueryCache
	Shelf       *timerec.Shelf
	Recommender *recommend.Recommender
	LikedStore  liked.Store
	Collector   *events.Collector
	Aggregator  *events.Aggregator
	Metrics     *metrics.Metrics
	DefaultTopK int
	MaxResults  int
}

func New(opts Options) *Handler {
	return &Handler{
		catalog:     opts.Catalog,
		index:       opts.Index,
		cache:       opts.Cache,
		shelf:       opts.Shelf,
		recommender: opts.Recommender,
		likedStore:  opts.LikedStore,
		collector:   opts.Collector,
		aggregator:  opts.Aggregator,
		metrics:     opts.Metrics,
		defaultTopK: opts.DefaultTopK,
		maxResults:  opts.MaxResults,
		logger:      slog.Default().With("component", "http-handler"),
	}
}

// Search handles GET /api/v1/search?q=<title>&k=<n>.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		// An empty query is "no results", not an error.
		h.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
		h.writeJSON(w, http.StatusOK, map[string]any{
			"query":   query,
			"results": []catalog.Book{},
		})
		return
	}
	k := h.defaultTopK
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		k = parsed
	}

	var rows []catalog.Book
	cacheHit := false
	if h.cache != nil {
		rows, cacheHit = h.cache.GetOrCompute(ctx, query, k, func() []catalog.Book {
			return h.index.Query(query, k)
		})
	} else {
		rows = h.index.Query(query, k)
	}

	latencyMs := time.Since(start).Milliseconds()
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else if h.cache != nil {
		h.metrics.CacheMissesTotal.Inc()
	}
	resultType := "hit"
	if len(rows) == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())

	log.Info("search completed",
		"query", query,
		"returned", len(rows),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	h.track(events.SearchEvent{
		Type:      events.EventSearch,
		Query:     query,
		Returned:  len(rows),
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestIDFromContext(ctx),
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": rows,
	})
}

// TimeRec handles GET /api/v1/timerec?minutes=<n>.
func (h *Handler) TimeRec(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	minutesStr := r.URL.Query().Get("minutes")
	if minutesStr == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'minutes' is required")
		return
	}
	minutes, err := strconv.ParseFloat(minutesStr, 64)
	if err != nil || minutes <= 0 {
		h.writeError(w, http.StatusBadRequest, "minutes must be a positive number")
		return
	}

	rows := h.shelf.RecommendByTime(minutes)
	h.track(events.RecommendEvent{
		Type:      events.EventTimeRec,
		Returned:  len(rows),
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestIDFromContext(ctx),
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"minutes": minutes,
		"results": rows,
	})
}

// Recommend handles GET /api/v1/recommendations. An empty liked list yields
// an empty result set.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	likedBooks, err := h.likedStore.Get()
	if err != nil {
		log.Error("loading liked list failed", "error", err)
		h.writeAppError(w, err)
		return
	}

	results, err := h.recommender.Recommend(ctx, likedBooks)
	if err != nil {
		log.Error("recommendation failed", "error", err)
		h.writeAppError(w, err)
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("recommendation served",
		"liked", len(likedBooks),
		"returned", len(results),
		"latency_ms", latencyMs,
	)
	h.track(events.RecommendEvent{
		Type:       events.EventRecommend,
		LikedCount: len(likedBooks),
		Returned:   len(results),
		LatencyMs:  latencyMs,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestIDFromContext(ctx),
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"liked_count": len(likedBooks),
		"results":     results,
	})
}

// ListLiked handles GET /api/v1/liked.
func (h *Handler) ListLiked(w http.ResponseWriter, r *http.Request) {
	books, err := h.likedStore.Get()
	if err != nil {
		logger.FromContext(r.Context()).Error("loading liked list failed", "error", err)
		h.writeAppError(w, err)
		return
	}
	h.metrics.LikedListSize.Set(float64(len(books)))
	h.writeJSON(w, http.StatusOK, map[string]any{"results": books})
}

// Like handles POST /api/v1/liked. The body carries the book id; title and
// display fields are filled from the catalog.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req struct {
		BookID string  `json:"book_id"`
		Rating float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BookID == "" {
		h.writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}
	book, ok := h.catalog.ByID(req.BookID)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("book %s not in catalog", req.BookID))
		return
	}

	err := h.likedStore.Add(liked.Book{
		BookID:        book.BookID,
		Rating:        req.Rating,
		Title:         book.Title,
		CoverImageURL: book.CoverImageURL,
		DetailURL:     book.DetailURL,
		PageCount:     book.PageCount,
	})
	if err != nil {
		log.Error("liking book failed", "book_id", req.BookID, "error", err)
		h.writeAppError(w, err)
		return
	}

	log.Info("book liked", "book_id", req.BookID)
	h.track(events.LikedEvent{
		Type:      events.EventLike,
		BookID:    req.BookID,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestIDFromContext(ctx),
	})
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "liked", "book_id": req.BookID})
}

// Unlike handles DELETE /api/v1/liked/{id}. Removing an absent id is a
// no-op and still returns 200.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookID := r.PathValue("id")
	if bookID == "" {
		h.writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	if err := h.likedStore.Remove(bookID); err != nil {
		logger.FromContext(ctx).Error("unliking book failed", "book_id", bookID, "error", err)
		h.writeAppError(w, err)
		return
	}

	h.track(events.LikedEvent{
		Type:      events.EventUnlike,
		BookID:    bookID,
		Timestamp: time.Now().UTC(),
		RequestID: logger.RequestIDFromContext(ctx),
	})
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "unliked", "book_id": bookID})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) track(event any) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
}
