package interactions

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/readscape/readscape/pkg/errors"
)

// Interaction is one (user, book, rating) triple from the log, with the
// external book code already mapped to a catalog id.
type Interaction struct {
	UserID string
	BookID string
	Rating float64
}

// Scanner makes streaming passes over the five-column headerless interaction
// log (user_id, external_code, is_read, rating, is_reviewed). Lines with the
// wrong field count or a non-numeric rating are data-quality noise and are
// skipped.
type Scanner struct {
	logPath string
	idMap   map[string]string
	logger  *slog.Logger
}

// NewScanner creates a Scanner over the given log using the loaded id map.
func NewScanner(logPath string, idMap map[string]string) *Scanner {
	return &Scanner{
		logPath: logPath,
		idMap:   idMap,
		logger:  slog.Default().With("component", "interactions"),
	}
}

// CountOverlaps is pass one: for every user in the log, count how many of
// their interactions fall inside the given liked-book-id set.
func (s *Scanner) CountOverlaps(ctx context.Context, likedIDs map[string]struct{}) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.scan(ctx, "overlap-count", func(userID, external, rating string) {
		bookID, ok := s.idMap[external]
		if !ok {
			return
		}
		if _, liked := likedIDs[bookID]; liked {
			counts[userID]++
		}
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// CollectForUsers is pass two: gather the full interaction triples of the
// given users, restricted to external codes that map to a known book.
func (s *Scanner) CollectForUsers(ctx context.Context, users map[string]struct{}) ([]Interaction, error) {
	var out []Interaction
	err := s.scan(ctx, "neighbor-collect", func(userID, external, rating string) {
		if _, ok := users[userID]; !ok {
			return
		}
		bookID, ok := s.idMap[external]
		if !ok {
			return
		}
		value, err := strconv.ParseFloat(rating, 64)
		if err != nil {
			return
		}
		out = append(out, Interaction{UserID: userID, BookID: bookID, Rating: value})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan runs one full pass over the log, invoking fn per well-formed line.
// The context is only consulted between lines; there is no mid-line
// cancellation.
func (s *Scanner) scan(ctx context.Context, pass string, fn func(userID, external, rating string)) error {
	start := time.Now()
	f, err := os.Open(s.logPath)
	if err != nil {
		return apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusServiceUnavailable,
			"opening interaction log %s: %v", s.logPath, err)
	}
	defer f.Close()

	var lines, malformed int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		if lines%1_000_000 == 0 && ctx.Err() != nil {
			return fmt.Errorf("scan pass %s: %w", pass, ctx.Err())
		}
		lines++
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) != 5 {
			malformed++
			continue
		}
		fn(fields[0], fields[1], fields[3])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading interaction log %s: %w", s.logPath, err)
	}
	s.logger.Info("interaction log pass complete",
		"pass", pass,
		"lines", lines,
		"malformed", malformed,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
