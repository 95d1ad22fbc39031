package recommend

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/internal/interactions"
	"github.com/readscape/readscape/internal/liked"
	"github.com/readscape/readscape/pkg/config"
	"github.com/readscape/readscape/pkg/metrics"
)

func testConfig() config.RecommendConfig {
	return config.RecommendConfig{
		NeighborUsers:    15,
		MinNeighborCount: 2,
		MinMeanRating:    4,
		MaxResults:       10,
		TruncateAbove:    20,
	}
}

func writeLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interactions.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing interaction log: %v", err)
	}
	return path
}

func newRecommender(t *testing.T, c *catalog.Catalog, lines []string, idMap map[string]string, cfg config.RecommendConfig) *Recommender {
	t.Helper()
	scanner := interactions.NewScanner(writeLog(t, lines), idMap)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return New(c, scanner, cfg, m)
}

func TestRecommendEmptyLikedList(t *testing.T) {
	c := catalog.FromBooks(nil, 3)
	r := newRecommender(t, c, []string{"u1,X1,1,5,0"}, map[string]string{"X1": "1"}, testConfig())

	results, err := r.Recommend(context.Background(), nil)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for empty liked list, want 0", len(results))
	}
}

// Ten users rated the liked book; five of them also rated book "99" with a
// mean of 4.5 over five ratings, and its catalog rating count is 50. The
// adjusted count is 5*5/50 = 0.5 and the score 4.5*0.5 = 2.25.
func TestRecommendEndToEnd(t *testing.T) {
	c := catalog.FromBooks([]catalog.Book{
		{BookID: "42", Title: "Dune", NormalizedTitle: "dune", RatingCount: 1000, PageCount: 412},
		{BookID: "99", Title: "Hyperion", NormalizedTitle: "hyperion", RatingCount: 50, PageCount: 482},
	}, 3)

	idMap := map[string]string{"X42": "42", "X99": "99"}
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf("u%d,X42,1,5,0", i))
	}
	for i, rating := range []string{"4", "5", "4", "5", "4.5"} {
		lines = append(lines, fmt.Sprintf("u%d,X99,1,%s,0", i+1, rating))
	}

	r := newRecommender(t, c, lines, idMap, testConfig())
	results, err := r.Recommend(context.Background(), []liked.Book{
		{BookID: "42", Title: "Dune", Rating: 5},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	got := results[0]
	if got.BookID != "99" {
		t.Fatalf("recommended book = %s, want 99", got.BookID)
	}
	if got.NeighborCount != 5 {
		t.Errorf("neighbor count = %d, want 5", got.NeighborCount)
	}
	if math.Abs(got.MeanRating-4.5) > 1e-9 {
		t.Errorf("mean rating = %v, want 4.5", got.MeanRating)
	}
	if math.Abs(got.AdjustedCount-0.5) > 1e-9 {
		t.Errorf("adjusted count = %v, want 0.5", got.AdjustedCount)
	}
	if math.Abs(got.Score-2.25) > 1e-9 {
		t.Errorf("score = %v, want 2.25", got.Score)
	}
}

func TestRecommendExcludesLikedByIDAndTitle(t *testing.T) {
	c := catalog.FromBooks([]catalog.Book{
		{BookID: "1", Title: "Dune", NormalizedTitle: "dune", RatingCount: 100, PageCount: 412},
		{BookID: "2", Title: "Dune!", NormalizedTitle: "dune", RatingCount: 100, PageCount: 420},
		{BookID: "3", Title: "Solaris", NormalizedTitle: "solaris", RatingCount: 100, PageCount: 204},
	}, 3)
	idMap := map[string]string{"A": "1", "B": "2", "C": "3"}

	// Every neighbor rated the liked book, the same-title different-edition
	// book, and an unrelated one.
	var lines []string
	for i := 1; i <= 4; i++ {
		lines = append(lines,
			fmt.Sprintf("u%d,A,1,5,0", i),
			fmt.Sprintf("u%d,B,1,5,0", i),
			fmt.Sprintf("u%d,C,1,5,0", i),
		)
	}

	r := newRecommender(t, c, lines, idMap, testConfig())
	likedBooks := []liked.Book{{BookID: "1", Title: "Dune", Rating: 5}}
	results, err := r.Recommend(context.Background(), likedBooks)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	for _, res := range results {
		if res.BookID == "1" {
			t.Errorf("liked book id in results")
		}
		if res.BookID == "2" {
			t.Errorf("same-title edition in results")
		}
	}
	if len(results) != 1 || results[0].BookID != "3" {
		t.Errorf("results = %+v, want only book 3", results)
	}
}

func TestRecommendFiltersLowMeanAndLowCount(t *testing.T) {
	c := catalog.FromBooks([]catalog.Book{
		{BookID: "1", Title: "Liked", NormalizedTitle: "liked", RatingCount: 100, PageCount: 100},
		{BookID: "2", Title: "Low Mean", NormalizedTitle: "low mean", RatingCount: 100, PageCount: 100},
		{BookID: "3", Title: "Low Count", NormalizedTitle: "low count", RatingCount: 100, PageCount: 100},
		{BookID: "4", Title: "Good", NormalizedTitle: "good", RatingCount: 100, PageCount: 100},
	}, 3)
	idMap := map[string]string{"A": "1", "B": "2", "C": "3", "D": "4"}

	var lines []string
	for i := 1; i <= 4; i++ {
		lines = append(lines,
			fmt.Sprintf("u%d,A,1,5,0", i),
			fmt.Sprintf("u%d,B,1,3,0", i), // mean 3 < 4
			fmt.Sprintf("u%d,D,1,5,0", i),
		)
	}
	lines = append(lines, "u1,C,1,5,0", "u2,C,1,5,0") // count 2, not > 2

	r := newRecommender(t, c, lines, idMap, testConfig())
	results, err := r.Recommend(context.Background(), []liked.Book{{BookID: "1", Title: "Liked", Rating: 5}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(results) != 1 || results[0].BookID != "4" {
		t.Errorf("results = %+v, want only book 4", results)
	}
}

func TestRecommendScoreMonotonicity(t *testing.T) {
	c := catalog.FromBooks([]catalog.Book{
		{BookID: "1", Title: "Liked", NormalizedTitle: "liked", RatingCount: 100, PageCount: 100},
		{BookID: "2", Title: "Narrow", NormalizedTitle: "narrow", RatingCount: 100, PageCount: 100},
		{BookID: "3", Title: "Broad", NormalizedTitle: "broad", RatingCount: 100, PageCount: 100},
	}, 3)
	idMap := map[string]string{"A": "1", "B": "2", "C": "3"}

	// Equal mean rating, book 3 rated by more neighbors.
	var lines []string
	for i := 1; i <= 6; i++ {
		lines = append(lines, fmt.Sprintf("u%d,A,1,5,0", i))
		lines = append(lines, fmt.Sprintf("u%d,C,1,5,0", i))
	}
	for i := 1; i <= 3; i++ {
		lines = append(lines, fmt.Sprintf("u%d,B,1,5,0", i))
	}

	r := newRecommender(t, c, lines, idMap, testConfig())
	results, err := r.Recommend(context.Background(), []liked.Book{{BookID: "1", Title: "Liked", Rating: 5}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	byID := make(map[string]Result)
	for _, res := range results {
		byID[res.BookID] = res
	}
	narrow, broad := byID["2"], byID["3"]
	if narrow.BookID == "" || broad.BookID == "" {
		t.Fatalf("missing candidates in results: %+v", results)
	}
	if broad.Score <= narrow.Score {
		t.Errorf("broad score %v not above narrow score %v", broad.Score, narrow.Score)
	}
	if broad.AdjustedCount <= narrow.AdjustedCount {
		t.Errorf("broad adjusted %v not above narrow adjusted %v", broad.AdjustedCount, narrow.AdjustedCount)
	}
}

func TestRecommendTruncationSortsByMean(t *testing.T) {
	books := []catalog.Book{{BookID: "00", Title: "Liked", NormalizedTitle: "liked", RatingCount: 100, PageCount: 100}}
	idMap := map[string]string{"L": "00"}
	var lines []string
	for i := 1; i <= 4; i++ {
		lines = append(lines, fmt.Sprintf("u%d,L,1,5,0", i))
	}
	// Three candidate books with distinct means, against a config that trims
	// anything above two candidates to the single best.
	for n, mean := range map[string]string{"01": "4", "02": "5", "03": "4.5"} {
		books = append(books, catalog.Book{
			BookID: n, Title: "Book " + n, NormalizedTitle: "book " + n, RatingCount: 100, PageCount: 100,
		})
		idMap["X"+n] = n
		for i := 1; i <= 4; i++ {
			lines = append(lines, fmt.Sprintf("u%d,X%s,1,%s,0", i, n, mean))
		}
	}

	cfg := testConfig()
	cfg.TruncateAbove = 2
	cfg.MaxResults = 1
	r := newRecommender(t, catalog.FromBooks(books, 3), lines, idMap, cfg)
	results, err := r.Recommend(context.Background(), []liked.Book{{BookID: "00", Title: "Liked", Rating: 5}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after truncation", len(results))
	}
	if results[0].BookID != "02" {
		t.Errorf("truncated result = %s, want the best-rated 02", results[0].BookID)
	}
}

func TestRecommendSmallSetKeepsGroupOrder(t *testing.T) {
	books := []catalog.Book{{BookID: "00", Title: "Liked", NormalizedTitle: "liked", RatingCount: 100, PageCount: 100}}
	idMap := map[string]string{"L": "00"}
	var lines []string
	for i := 1; i <= 4; i++ {
		lines = append(lines, fmt.Sprintf("u%d,L,1,5,0", i))
	}
	for _, n := range []string{"30", "10", "20"} {
		books = append(books, catalog.Book{
			BookID: n, Title: "Book " + n, NormalizedTitle: "book " + n, RatingCount: 100, PageCount: 100,
		})
		idMap["X"+n] = n
		for i := 1; i <= 4; i++ {
			lines = append(lines, fmt.Sprintf("u%d,X%s,1,5,0", i, n))
		}
	}

	r := newRecommender(t, catalog.FromBooks(books, 3), lines, idMap, testConfig())
	results, err := r.Recommend(context.Background(), []liked.Book{{BookID: "00", Title: "Liked", Rating: 5}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	var order []string
	for _, res := range results {
		order = append(order, res.BookID)
	}
	want := []string{"10", "20", "30"}
	if len(order) != len(want) {
		t.Fatalf("got order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
}

func TestRatingMatrixLastWriteWins(t *testing.T) {
	m := newRatingMatrix(2)
	m.Set(1, 0, 2)
	m.Set(1, 0, 5)
	m.Set(0, 0, 5)

	sims := m.CosineAgainst(0)
	if math.Abs(sims[1]-1) > 1e-9 {
		t.Errorf("cosine after overwrite = %v, want 1", sims[1])
	}
}

func TestSelectTopRows(t *testing.T) {
	sims := []float64{0.1, 0.9, 0.4, 0.8, 0.2}
	rows := selectTopRows(sims, 2)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	seen := map[int]bool{}
	for _, r := range rows {
		seen[r] = true
	}
	if !seen[1] || !seen[3] {
		t.Errorf("top rows = %v, want {1,3}", rows)
	}

	all := selectTopRows(sims, 10)
	if len(all) != len(sims) {
		t.Errorf("got %d rows for oversized k, want %d", len(all), len(sims))
	}
}
