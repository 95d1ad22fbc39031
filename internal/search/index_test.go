package search

import (
	"fmt"
	"testing"

	"github.com/readscape/readscape/internal/catalog"
)

func buildTestIndex(t *testing.T) (*Index, *catalog.Catalog) {
	t.Helper()
	titles := []string{
		"Dune",
		"Dune Messiah",
		"Children of Dune",
		"The Left Hand of Darkness",
		"The Dispossessed",
		"Solaris",
		"Hyperion",
		"The Fall of Hyperion",
		"A Wizard of Earthsea",
		"The Tombs of Atuan",
		"Neuromancer",
		"Snow Crash",
	}
	books := make([]catalog.Book, len(titles))
	for i, title := range titles {
		books[i] = catalog.Book{
			BookID:          fmt.Sprintf("%d", i+1),
			Title:           title,
			NormalizedTitle: catalog.NormalizeTitle(title),
			RatingCount:     (i + 1) * 100,
			PageCount:       200,
		}
	}
	c := catalog.FromBooks(books, 3)
	return Build(c), c
}

func TestQueryReturnsExactlyK(t *testing.T) {
	idx, c := buildTestIndex(t)
	for _, query := range []string{"dune", "left hand", "zzzz qqqq", ""} {
		for _, k := range []int{1, 5, 10} {
			got := idx.Query(query, k)
			if len(got) != k {
				t.Errorf("Query(%q, %d) returned %d rows", query, k, len(got))
			}
		}
	}
	if got := idx.Query("dune", c.Len()+10); len(got) != c.Len() {
		t.Errorf("oversized k returned %d rows, want the whole catalog %d", len(got), c.Len())
	}
}

func TestQueryDeterminism(t *testing.T) {
	idx, _ := buildTestIndex(t)
	first := idx.Query("dune messiah", 5)
	second := idx.Query("dune messiah", 5)
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].BookID != second[i].BookID {
			t.Errorf("row %d differs: %s vs %s", i, first[i].BookID, second[i].BookID)
		}
	}
}

func TestQuerySelectsBySimilarityOrdersByPopularity(t *testing.T) {
	idx, _ := buildTestIndex(t)
	got := idx.Query("dune", 3)

	// The three Dune titles share the query term; everything else scores 0.
	wantIDs := map[string]bool{"1": true, "2": true, "3": true}
	for _, b := range got {
		if !wantIDs[b.BookID] {
			t.Errorf("unexpected row %s (%s) in top 3", b.BookID, b.Title)
		}
	}
	// Rating count, not similarity, decides the order of the selection.
	for i := 1; i < len(got); i++ {
		if got[i-1].RatingCount < got[i].RatingCount {
			t.Errorf("rows not sorted by descending rating count: %v before %v",
				got[i-1].RatingCount, got[i].RatingCount)
		}
	}
}

func TestQueryPunctuationInsensitiveScoring(t *testing.T) {
	idx, _ := buildTestIndex(t)
	plain := idx.Query("dune", 3)
	punctuated := idx.Query("Dune!!!", 3)
	for i := range plain {
		if plain[i].BookID != punctuated[i].BookID {
			t.Errorf("row %d differs between plain and punctuated query", i)
		}
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("Dune: Part (One)"); got != "dune part one" {
		t.Errorf("CacheKey = %q", got)
	}
	if CacheKey("dune") != CacheKey("DUNE!") {
		t.Error("cache keys differ for equivalent queries")
	}
}
