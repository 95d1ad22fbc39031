package liked

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

var csvHeader = []string{"user_id", "book_id", "rating", "title", "cover_image", "url", "num_pages"}

// CSVStore keeps the liked list in a headered CSV file, rewritten in full on
// every mutation. The file is created with just the header on first use.
type CSVStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCSVStore creates the store and initialises the backing file if it does
// not exist yet.
func NewCSVStore(path string) (*CSVStore, error) {
	s := &CSVStore{
		path:   path,
		logger: slog.Default().With("component", "liked-store", "backend", "csv"),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(nil); err != nil {
			return nil, fmt.Errorf("initialising liked list %s: %w", path, err)
		}
		s.logger.Info("liked list initialised", "path", path)
	}
	return s, nil
}

// Get returns all liked rows.
func (s *CSVStore) Get() ([]Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Add appends a book unless its id is already present. A zero rating is
// recorded as 5, the assumed rating of a bare "like".
func (s *CSVStore) Add(b Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	books, err := s.read()
	if err != nil {
		return err
	}
	for _, existing := range books {
		if existing.BookID == b.BookID {
			return nil
		}
	}
	b.UserID = SelfUserID
	if b.Rating == 0 {
		b.Rating = 5
	}
	return s.write(append(books, b))
}

// Remove drops the row with the given book id; absent ids remove nothing.
func (s *CSVStore) Remove(bookID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	books, err := s.read()
	if err != nil {
		return err
	}
	kept := books[:0]
	for _, b := range books {
		if b.BookID != bookID {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(books) {
		return nil
	}
	return s.write(kept)
}

func (s *CSVStore) read() ([]Book, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening liked list %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading liked list %s: %w", s.path, err)
	}
	books := make([]Book, 0)
	for i, rec := range records {
		if i == 0 || len(rec) != len(csvHeader) {
			continue
		}
		rating, _ := strconv.ParseFloat(rec[2], 64)
		pages, _ := strconv.Atoi(rec[6])
		books = append(books, Book{
			UserID:        rec[0],
			BookID:        rec[1],
			Rating:        rating,
			Title:         rec[3],
			CoverImageURL: rec[4],
			DetailURL:     rec[5],
			PageCount:     pages,
		})
	}
	return books, nil
}

func (s *CSVStore) write(books []Book) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating liked list %s: %w", tmp, err)
	}
	w := csv.NewWriter(f)
	rows := [][]string{csvHeader}
	for _, b := range books {
		rows = append(rows, []string{
			b.UserID,
			b.BookID,
			strconv.FormatFloat(b.Rating, 'g', -1, 64),
			b.Title,
			b.CoverImageURL,
			b.DetailURL,
			strconv.Itoa(b.PageCount),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing liked list %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing liked list %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing liked list %s: %w", s.path, err)
	}
	return nil
}
