// Package timerec suggests books readable within a caller-supplied time
// budget. It is a pure function over the catalog's page counts; no index is
// involved.
package timerec

import (
	"sort"

	"github.com/readscape/readscape/internal/catalog"
)

const (
	defaultReadingSpeedWPM = 225
	defaultWordsPerPage    = 275
	maxSuggestions         = 20
)

// PagesReadable converts a time budget in minutes into a page budget at the
// given reading speed and page density.
func PagesReadable(minutes float64, speedWPM float64, wordsPerPage float64) float64 {
	return minutes * speedWPM / wordsPerPage
}

// Shelf answers time-budget requests against the catalog's readable subset.
type Shelf struct {
	rows []catalog.Book
}

// NewShelf derives the filterable subset from the catalog once; the
// page-count floor was already applied when Readable was computed.
func NewShelf(c *catalog.Catalog) *Shelf {
	return &Shelf{rows: c.Readable()}
}

// RecommendByTime returns up to 20 books finishable within the given minutes
// at the default reading speed, sorted by descending page count then rating
// count, so the fullest use of the budget comes first.
func (s *Shelf) RecommendByTime(minutes float64) []catalog.Book {
	budget := PagesReadable(minutes, defaultReadingSpeedWPM, defaultWordsPerPage)
	out := make([]catalog.Book, 0, maxSuggestions)
	for _, b := range s.rows {
		if float64(b.PageCount) <= budget {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageCount != out[j].PageCount {
			return out[i].PageCount > out[j].PageCount
		}
		return out[i].RatingCount > out[j].RatingCount
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
