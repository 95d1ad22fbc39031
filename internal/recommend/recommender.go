package recommend

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/internal/interactions"
	"github.com/readscape/readscape/internal/liked"
	"github.com/readscape/readscape/pkg/config"
	"github.com/readscape/readscape/pkg/metrics"
)

// Result is one recommended book with its collaborative-filtering scores.
type Result struct {
	BookID        string  `json:"book_id"`
	Title         string  `json:"title"`
	MeanRating    float64 `json:"mean_rating"`
	NeighborCount int     `json:"neighbor_count"`
	AdjustedCount float64 `json:"adjusted_count"`
	Score         float64 `json:"score"`
	RatingCount   int     `json:"ratings"`
	CoverImageURL string  `json:"cover_image"`
	DetailURL     string  `json:"url"`
	PageCount     int     `json:"num_pages"`
}

// Recommender produces user-based collaborative-filtering recommendations
// from the interaction log. Each call makes two full passes over the log:
// one to find users overlapping the liked set, one to collect the ratings of
// the users that qualify.
type Recommender struct {
	catalog *catalog.Catalog
	scanner *interactions.Scanner
	cfg     config.RecommendConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(c *catalog.Catalog, scanner *interactions.Scanner, cfg config.RecommendConfig, m *metrics.Metrics) *Recommender {
	return &Recommender{
		catalog: c,
		scanner: scanner,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "recommender"),
	}
}

// Recommend ranks books the neighbor users rated highly that the liked list
// does not already contain. An empty liked list yields an empty result, not
// an error.
func (r *Recommender) Recommend(ctx context.Context, likedBooks []liked.Book) ([]Result, error) {
	start := time.Now()
	if len(likedBooks) == 0 {
		r.metrics.RecommendationsTotal.WithLabelValues("empty_liked").Inc()
		return []Result{}, nil
	}

	likedIDs := make(map[string]struct{}, len(likedBooks))
	likedTitles := make(map[string]struct{}, len(likedBooks))
	for _, b := range likedBooks {
		likedIDs[b.BookID] = struct{}{}
		likedTitles[catalog.NormalizeTitleCollapsed(b.Title)] = struct{}{}
	}

	neighbors, err := r.findNeighborUsers(ctx, likedBooks, likedIDs)
	if err != nil {
		r.metrics.RecommendationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	results := r.aggregate(neighbors, likedIDs, likedTitles)

	r.metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	r.metrics.RecommendLatency.Observe(time.Since(start).Seconds())
	r.logger.Info("recommendation complete",
		"liked", len(likedBooks),
		"results", len(results),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return results, nil
}

// findNeighborUsers runs both log passes and similarity ranking, returning
// the interactions of the most similar users.
func (r *Recommender) findNeighborUsers(ctx context.Context, likedBooks []liked.Book, likedIDs map[string]struct{}) ([]interactions.Interaction, error) {
	// Pass one: a user qualifies when their interactions against the liked
	// set strictly exceed a fifth of its size.
	passStart := time.Now()
	overlaps, err := r.scanner.CountOverlaps(ctx, likedIDs)
	if err != nil {
		return nil, fmt.Errorf("counting liked-set overlaps: %w", err)
	}
	r.metrics.InteractionScanPass.WithLabelValues("overlap-count").Observe(time.Since(passStart).Seconds())
	threshold := len(likedIDs) / 5
	qualifying := make(map[string]struct{})
	for userID, count := range overlaps {
		if count > threshold {
			qualifying[userID] = struct{}{}
		}
	}
	r.metrics.NeighborUsersCount.Observe(float64(len(qualifying)))
	r.logger.Debug("overlap pass complete", "candidates", len(overlaps), "qualifying", len(qualifying))
	if len(qualifying) == 0 {
		return nil, nil
	}

	// Pass two: the qualifying users' full rating rows.
	passStart = time.Now()
	collected, err := r.scanner.CollectForUsers(ctx, qualifying)
	if err != nil {
		return nil, fmt.Errorf("collecting neighbor interactions: %w", err)
	}
	r.metrics.InteractionScanPass.WithLabelValues("neighbor-collect").Observe(time.Since(passStart).Seconds())

	// Combined table: this session's own ratings first, under the reserved
	// self user id, then everything collected.
	combined := make([]interactions.Interaction, 0, len(likedBooks)+len(collected))
	for _, b := range likedBooks {
		combined = append(combined, interactions.Interaction{UserID: liked.SelfUserID, BookID: b.BookID, Rating: b.Rating})
	}
	combined = append(combined, collected...)

	// Dense indices per user and book. The self user is pinned to row zero
	// so the similarity reference row is always its own.
	userIdx := map[string]int{liked.SelfUserID: 0}
	bookCols := make(map[string]int)
	for _, in := range combined {
		if _, ok := userIdx[in.UserID]; !ok {
			userIdx[in.UserID] = len(userIdx)
		}
		if _, ok := bookCols[in.BookID]; !ok {
			bookCols[in.BookID] = len(bookCols)
		}
	}

	m := newRatingMatrix(len(userIdx))
	for _, in := range combined {
		m.Set(userIdx[in.UserID], bookCols[in.BookID], in.Rating)
	}
	sims := m.CosineAgainst(0)

	// Partial selection of the most similar rows. The self row participates
	// in the selection and is excluded from the output afterwards.
	topRows := selectTopRows(sims, r.cfg.NeighborUsers)
	rowUser := make(map[int]string, len(userIdx))
	for userID, row := range userIdx {
		rowUser[row] = userID
	}
	neighborSet := make(map[string]struct{}, len(topRows))
	for _, row := range topRows {
		userID := rowUser[row]
		if userID == liked.SelfUserID {
			continue
		}
		neighborSet[userID] = struct{}{}
	}

	// Keep the raw triples of the selected neighbors, duplicates included:
	// the matrix collapses duplicate coordinates, the aggregation does not.
	kept := make([]interactions.Interaction, 0, len(collected))
	for _, in := range collected {
		if _, ok := neighborSet[in.UserID]; ok {
			kept = append(kept, in)
		}
	}
	return kept, nil
}

// aggregate folds the neighbor interactions per book, joins the catalog, and
// applies the quality filters and the truncation rule.
func (r *Recommender) aggregate(neighbors []interactions.Interaction, likedIDs, likedTitles map[string]struct{}) []Result {
	type agg struct {
		sum   float64
		count int
	}
	byBook := make(map[string]*agg)
	for _, in := range neighbors {
		a, ok := byBook[in.BookID]
		if !ok {
			a = &agg{}
			byBook[in.BookID] = a
		}
		a.sum += in.Rating
		a.count++
	}

	bookIDs := make([]string, 0, len(byBook))
	for id := range byBook {
		bookIDs = append(bookIDs, id)
	}
	// Group keys come out sorted; this is also the output order when the
	// candidate list is small enough to skip truncation.
	sort.Strings(bookIDs)

	results := make([]Result, 0, len(bookIDs))
	for _, id := range bookIDs {
		if _, ok := likedIDs[id]; ok {
			continue
		}
		book, ok := r.catalog.ByID(id)
		if !ok {
			continue
		}
		if _, ok := likedTitles[catalog.NormalizeTitleCollapsed(book.Title)]; ok {
			continue
		}
		a := byBook[id]
		mean := a.sum / float64(a.count)
		if mean < r.cfg.MinMeanRating || a.count <= r.cfg.MinNeighborCount {
			continue
		}
		adjusted := float64(a.count) * float64(a.count) / float64(book.RatingCount)
		results = append(results, Result{
			BookID:        book.BookID,
			Title:         book.Title,
			MeanRating:    mean,
			NeighborCount: a.count,
			AdjustedCount: adjusted,
			Score:         mean * adjusted,
			RatingCount:   book.RatingCount,
			CoverImageURL: book.CoverImageURL,
			DetailURL:     book.DetailURL,
			PageCount:     book.PageCount,
		})
	}

	// Large candidate sets are trimmed to the best-rated few; small ones are
	// returned in group-key order, untouched.
	if len(results) > r.cfg.TruncateAbove {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].MeanRating > results[j].MeanRating
		})
		results = results[:r.cfg.MaxResults]
	}
	return results
}

// selectTopRows returns the indices of the k largest similarities via a
// bounded min-heap; all indices when fewer than k exist.
func selectTopRows(sims []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	if len(sims) <= k {
		rows := make([]int, len(sims))
		for i := range sims {
			rows[i] = i
		}
		return rows
	}
	h := &rowHeap{values: sims}
	heap.Init(h)
	for row := range sims {
		if h.Len() < k {
			heap.Push(h, row)
			continue
		}
		if sims[row] > sims[h.rows[0]] {
			h.rows[0] = row
			heap.Fix(h, 0)
		}
	}
	return h.rows
}

type rowHeap struct {
	rows   []int
	values []float64
}

func (h *rowHeap) Len() int           { return len(h.rows) }
func (h *rowHeap) Less(i, j int) bool { return h.values[h.rows[i]] < h.values[h.rows[j]] }
func (h *rowHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *rowHeap) Push(x any)         { h.rows = append(h.rows, x.(int)) }
func (h *rowHeap) Pop() any {
	old := h.rows
	n := len(old)
	x := old[n-1]
	h.rows = old[:n-1]
	return x
}
