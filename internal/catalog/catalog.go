// Package catalog loads the book catalog from a compressed line-delimited
// JSON source and holds it in memory as an immutable table for the lifetime
// of the process. Both the title search index and the time-budget shelf are
// built from this table.
package catalog

import (
	"strings"
	"unicode"
)

// Book is a single admitted catalog row.
type Book struct {
	BookID          string `json:"book_id"`
	Title           string `json:"title"`
	NormalizedTitle string `json:"-"`
	RatingCount     int    `json:"ratings"`
	CoverImageURL   string `json:"cover_image"`
	DetailURL       string `json:"url"`
	PageCount       int    `json:"num_pages"`
}

// Catalog is the immutable in-memory book table. It is built once at startup
// and never mutated afterwards, so it is safe for concurrent readers.
type Catalog struct {
	books    []Book
	byID     map[string]int
	readable []int
}

// FromBooks builds a catalog from already-admitted rows. Rows repeating an
// earlier book id are dropped; rows with page count above minPageCount form
// the readable subset.
func FromBooks(books []Book, minPageCount int) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(books))}
	for _, b := range books {
		if _, dup := c.byID[b.BookID]; dup {
			continue
		}
		c.byID[b.BookID] = len(c.books)
		c.books = append(c.books, b)
	}
	for i, b := range c.books {
		if b.PageCount > minPageCount {
			c.readable = append(c.readable, i)
		}
	}
	return c
}

// Len returns the number of admitted books.
func (c *Catalog) Len() int {
	return len(c.books)
}

// Books returns the full table in row order. Callers must not modify it.
func (c *Catalog) Books() []Book {
	return c.books
}

// At returns the book at the given row position.
func (c *Catalog) At(i int) Book {
	return c.books[i]
}

// ByID looks up a book by its catalog identifier.
func (c *Catalog) ByID(id string) (Book, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Book{}, false
	}
	return c.books[i], true
}

// Readable returns the rows eligible for time-budget suggestions. The
// page-count floor is applied once here, when the subset is derived, not per
// request.
func (c *Catalog) Readable() []Book {
	out := make([]Book, len(c.readable))
	for i, row := range c.readable {
		out[i] = c.books[row]
	}
	return out
}

// NormalizeTitle strips every character outside [a-zA-Z0-9 ] and lowercases
// the remainder. It is idempotent.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// NormalizeTitleCollapsed is NormalizeTitle with runs of whitespace collapsed
// to a single space. The recommender compares titles in this form so that
// same-title different-edition rows still match.
func NormalizeTitleCollapsed(title string) string {
	return strings.Join(strings.Fields(NormalizeTitle(title)), " ")
}
