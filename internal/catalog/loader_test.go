package catalog

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/readscape/readscape/pkg/config"
)

func writeGzipLines(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.json.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating catalog file: %v", err)
	}
	gz := gzip.NewWriter(f)
	for _, line := range lines {
		if _, err := gz.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("writing line: %v", err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}
	return path
}

func loadFrom(t *testing.T, lines []string) *Catalog {
	t.Helper()
	c, err := Load(config.CatalogConfig{
		Path:           writeGzipLines(t, lines),
		MinRatingCount: 15,
		MinPageCount:   3,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoadAdmissionRules(t *testing.T) {
	c := loadFrom(t, []string{
		`{"book_id":"1","title_without_series":"Dune","ratings_count":"5000","url":"u1","image_url":"i1","num_pages":"412"}`,
		`{"book_id":"2","title_without_series":"Obscure","ratings_count":"15","url":"u2","image_url":"i2","num_pages":"100"}`,
		`{"book_id":"3","title_without_series":"Bad Pages","ratings_count":"100","url":"u3","image_url":"i3","num_pages":"n/a"}`,
		`{"book_id":"4","title_without_series":"Bad Ratings","ratings_count":"many","url":"u4","image_url":"i4","num_pages":"200"}`,
		`not json at all`,
		`{"book_id":"5","title_without_series":"!!!","ratings_count":"100","url":"u5","image_url":"i5","num_pages":"80"}`,
		`{"book_id":"1","title_without_series":"Dune Again","ratings_count":"9000","url":"u6","image_url":"i6","num_pages":"500"}`,
		`{"book_id":"6","title_without_series":"Pamphlet","ratings_count":"100","url":"u7","image_url":"i7","num_pages":"3"}`,
	})

	if c.Len() != 2 {
		t.Fatalf("admitted %d books, want 2", c.Len())
	}

	dune, ok := c.ByID("1")
	if !ok {
		t.Fatal("book 1 missing")
	}
	if dune.Title != "Dune" {
		t.Errorf("duplicate id overwrote first record: %q", dune.Title)
	}
	if dune.NormalizedTitle != "dune" {
		t.Errorf("NormalizedTitle = %q", dune.NormalizedTitle)
	}
	if dune.RatingCount != 5000 || dune.PageCount != 412 {
		t.Errorf("numeric coercion wrong: %+v", dune)
	}

	// Rating count at the threshold is excluded, not included.
	if _, ok := c.ByID("2"); ok {
		t.Error("book with ratings_count == 15 admitted")
	}
	if _, ok := c.ByID("3"); ok {
		t.Error("book with non-numeric num_pages admitted")
	}
	if _, ok := c.ByID("4"); ok {
		t.Error("book with non-numeric ratings_count admitted")
	}
	if _, ok := c.ByID("5"); ok {
		t.Error("book with empty normalized title admitted")
	}

	// The readable subset requires page count strictly above the floor.
	readable := c.Readable()
	if len(readable) != 1 || readable[0].BookID != "1" {
		t.Errorf("readable = %+v, want only book 1", readable)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(config.CatalogConfig{Path: filepath.Join(t.TempDir(), "absent.json.gz")})
	if err == nil {
		t.Fatal("Load succeeded on missing file")
	}
}

func TestLoadEmptySource(t *testing.T) {
	c := loadFrom(t, nil)
	if c.Len() != 0 {
		t.Errorf("Len = %d for empty source", c.Len())
	}
}
