package search

import (
	"container/heap"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/readscape/readscape/internal/catalog"
)

// posting pairs a catalog row with the weight of one term in that row's
// title vector.
type posting struct {
	row    int
	weight float64
}

// Index is the fitted title index: one sparse TF-IDF vector per catalog row,
// stored as term postings for query-time scoring. Read-only after Build.
type Index struct {
	catalog    *catalog.Catalog
	vectorizer *Vectorizer
	postings   map[int][]posting
}

// Build fits the vector space over every normalized title in the catalog and
// lays the row vectors out as postings.
func Build(c *catalog.Catalog) *Index {
	start := time.Now()
	books := c.Books()
	docs := make([]string, len(books))
	for i, b := range books {
		docs[i] = b.NormalizedTitle
	}
	idx := &Index{
		catalog:    c,
		vectorizer: FitVectorizer(docs),
		postings:   make(map[int][]posting),
	}
	for row, doc := range docs {
		for term, weight := range idx.vectorizer.Transform(doc) {
			idx.postings[term] = append(idx.postings[term], posting{row: row, weight: weight})
		}
	}
	slog.Default().With("component", "title-index").Info("index built",
		"rows", len(books),
		"vocab", idx.vectorizer.VocabSize(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return idx
}

// CacheKey returns the stripped form of a query: lowercased with everything
// outside [a-z0-9 ] removed. Note the stripped form is NOT safe as a memo
// key: stripping joins alphanumeric runs that punctuation separates, so
// queries that tokenize differently can strip to the same string.
func CacheKey(query string) string {
	return catalog.NormalizeTitle(query)
}

// Query returns the k most title-similar books for the query text, ordered by
// descending rating count. Similarity picks the candidates; popularity orders
// them. The selection always yields k rows for catalogs of at least k books,
// even when no title shares a term with the query.
//
// The stripped form of the query is computed but unused; the vectorizer sees
// the lowercased original.
func (idx *Index) Query(text string, k int) []catalog.Book {
	_ = CacheKey(text)
	queryVec := idx.vectorizer.Transform(strings.ToLower(text))

	n := idx.catalog.Len()
	sims := make([]float64, n)
	for term, weight := range queryVec {
		for _, p := range idx.postings[term] {
			sims[p.row] += weight * p.weight
		}
	}

	rows := selectTop(sims, k)
	out := make([]catalog.Book, len(rows))
	for i, row := range rows {
		out[i] = idx.catalog.At(row)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RatingCount > out[j].RatingCount
	})
	return out
}

// selectTop returns the indices of the k largest values via partial selection
// with a bounded min-heap; the result is unordered. All indices are returned
// when fewer than k values exist.
func selectTop(values []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	if len(values) <= k {
		rows := make([]int, len(values))
		for i := range values {
			rows[i] = i
		}
		return rows
	}
	h := &simHeap{values: values}
	heap.Init(h)
	for row := range values {
		if h.Len() < k {
			heap.Push(h, row)
			continue
		}
		if values[row] > values[h.rows[0]] {
			h.rows[0] = row
			heap.Fix(h, 0)
		}
	}
	return h.rows
}

// simHeap is a min-heap of row indices keyed by their similarity values.
type simHeap struct {
	rows   []int
	values []float64
}

func (h *simHeap) Len() int           { return len(h.rows) }
func (h *simHeap) Less(i, j int) bool { return h.values[h.rows[i]] < h.values[h.rows[j]] }
func (h *simHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *simHeap) Push(x any)         { h.rows = append(h.rows, x.(int)) }
func (h *simHeap) Pop() any {
	old := h.rows
	n := len(old)
	x := old[n-1]
	h.rows = old[:n-1]
	return x
}
