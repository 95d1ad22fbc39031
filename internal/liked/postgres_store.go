package liked

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/readscape/readscape/pkg/postgres"
)

// PostgresStore persists the liked list in a single table, one row per book.
// Semantics mirror the CSV backend: liking an already-liked book and removing
// an absent one are both no-ops.
type PostgresStore struct {
	client  *postgres.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewPostgresStore(client *postgres.Client) (*PostgresStore, error) {
	s := &PostgresStore{
		client:  client,
		timeout: 5 * time.Second,
		logger:  slog.Default().With("component", "liked-store", "backend", "postgres"),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.client.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS liked_books (
			user_id     TEXT NOT NULL,
			book_id     TEXT NOT NULL,
			rating      DOUBLE PRECISION NOT NULL,
			title       TEXT NOT NULL,
			cover_image TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			num_pages   INTEGER NOT NULL DEFAULT 0,
			liked_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, book_id)
		)`)
	if err != nil {
		return fmt.Errorf("creating liked_books table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get() ([]Book, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT user_id, book_id, rating, title, cover_image, url, num_pages
		FROM liked_books
		WHERE user_id = $1
		ORDER BY liked_at`, SelfUserID)
	if err != nil {
		return nil, fmt.Errorf("querying liked books: %w", err)
	}
	defer rows.Close()

	books := make([]Book, 0)
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.UserID, &b.BookID, &b.Rating, &b.Title, &b.CoverImageURL, &b.DetailURL, &b.PageCount); err != nil {
			return nil, fmt.Errorf("scanning liked book row: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating liked book rows: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) Add(b Book) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if b.Rating == 0 {
		b.Rating = 5
	}
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO liked_books (user_id, book_id, rating, title, cover_image, url, num_pages)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, book_id) DO NOTHING`,
		SelfUserID, b.BookID, b.Rating, b.Title, b.CoverImageURL, b.DetailURL, b.PageCount)
	if err != nil {
		return fmt.Errorf("inserting liked book %s: %w", b.BookID, err)
	}
	return nil
}

func (s *PostgresStore) Remove(bookID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.client.DB.ExecContext(ctx, `
		DELETE FROM liked_books WHERE user_id = $1 AND book_id = $2`, SelfUserID, bookID)
	if err != nil {
		return fmt.Errorf("deleting liked book %s: %w", bookID, err)
	}
	return nil
}
