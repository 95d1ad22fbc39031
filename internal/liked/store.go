// Package liked persists the active reader's liked-books list. The
// recommender reads it; the presentation shell mutates it. The list is
// session-scoped mutable state under a single-user assumption, so backends
// are synchronous and unlocked across processes.
package liked

// SelfUserID tags the session's own rows in the combined interaction table.
// The recommender treats this id as "the current reader" and never counts it
// as a neighbor.
const SelfUserID = "-1"

// Book is one liked-list row.
type Book struct {
	UserID        string  `json:"user_id"`
	BookID        string  `json:"book_id"`
	Rating        float64 `json:"rating"`
	Title         string  `json:"title"`
	CoverImageURL string  `json:"cover_image"`
	DetailURL     string  `json:"url"`
	PageCount     int     `json:"num_pages"`
}

// Store is the liked-list record store. Add of an already-liked book id and
// Remove of an absent id are both no-ops, never errors.
type Store interface {
	Get() ([]Book, error)
	Add(b Book) error
	Remove(bookID string) error
}
