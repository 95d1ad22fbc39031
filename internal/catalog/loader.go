package catalog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/readscape/readscape/pkg/config"
)

// maxLineSize bounds a single catalog record. Goodreads dump lines run to a
// few hundred KB at most.
const maxLineSize = 4 << 20

// rawBook mirrors the source record. Numeric fields arrive as strings in the
// dump and are coerced during admission.
type rawBook struct {
	BookID      string `json:"book_id"`
	Title       string `json:"title_without_series"`
	RatingCount string `json:"ratings_count"`
	DetailURL   string `json:"url"`
	CoverImage  string `json:"image_url"`
	NumPages    string `json:"num_pages"`
}

// Load streams the gzip-compressed line-delimited JSON catalog source and
// returns the admitted table. Records with malformed JSON or non-numeric
// rating/page counts are data-quality noise and are skipped silently;
// admission requires rating count above the configured floor and a non-empty
// normalized title. A failure to open or read the source is fatal to the
// load.
func Load(cfg config.CatalogConfig) (*Catalog, error) {
	logger := slog.Default().With("component", "catalog-loader")
	start := time.Now()

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog source %s: %w", cfg.Path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream %s: %w", cfg.Path, err)
	}
	defer gz.Close()

	var admitted []Book
	var scanned, skipped int

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		scanned++
		book, ok := admit(scanner.Bytes(), cfg)
		if !ok {
			skipped++
			continue
		}
		admitted = append(admitted, book)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading catalog source %s: %w", cfg.Path, err)
	}

	c := FromBooks(admitted, cfg.MinPageCount)
	skipped += len(admitted) - c.Len()

	logger.Info("catalog loaded",
		"path", cfg.Path,
		"scanned", scanned,
		"admitted", len(c.books),
		"skipped", skipped,
		"readable", len(c.readable),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return c, nil
}

// admit parses one source line and applies the admission rules.
func admit(line []byte, cfg config.CatalogConfig) (Book, bool) {
	var raw rawBook
	if err := json.Unmarshal(line, &raw); err != nil {
		return Book{}, false
	}
	ratings, err := strconv.Atoi(raw.RatingCount)
	if err != nil {
		return Book{}, false
	}
	pages, err := strconv.Atoi(raw.NumPages)
	if err != nil {
		return Book{}, false
	}
	if ratings <= cfg.MinRatingCount {
		return Book{}, false
	}
	normalized := NormalizeTitle(raw.Title)
	if normalized == "" {
		return Book{}, false
	}
	return Book{
		BookID:          raw.BookID,
		Title:           raw.Title,
		NormalizedTitle: normalized,
		RatingCount:     ratings,
		CoverImageURL:   raw.CoverImage,
		DetailURL:       raw.DetailURL,
		PageCount:       pages,
	}, true
}
