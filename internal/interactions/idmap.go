// Package interactions streams the shared user-item interaction log. The log
// may be far larger than memory, so every consumer reads it incrementally;
// the collaborative recommender makes two full passes per request, trading
// repeated I/O for a bounded footprint.
package interactions

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LoadIDMap reads the two-column headerless CSV mapping external book codes
// to catalog book ids. It is loaded once at startup and treated as immutable.
func LoadIDMap(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening id map %s: %w", path, err)
	}
	defer f.Close()

	idMap := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		external, bookID, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		idMap[external] = bookID
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading id map %s: %w", path, err)
	}
	slog.Default().With("component", "interactions").Info("id map loaded",
		"path", path,
		"entries", len(idMap),
	)
	return idMap, nil
}
