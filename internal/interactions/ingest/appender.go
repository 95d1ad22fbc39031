package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/readscape/readscape/pkg/kafka"
)

// Appender serialises validated rating events and appends them to the
// interaction log. Appends are serialised under a mutex so concurrent
// handler invocations cannot interleave partial lines.
type Appender struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

func NewAppender(path string) *Appender {
	return &Appender{
		path:   path,
		logger: slog.Default().With("component", "interaction-ingest"),
	}
}

// Append writes one event as a five-column log line.
func (a *Appender) Append(event RatingEvent) error {
	if err := Validate(event); err != nil {
		return fmt.Errorf("validating rating event: %w", err)
	}
	line := fmt.Sprintf("%s,%s,%s,%s,%s\n",
		event.UserID,
		event.BookCode,
		boolColumn(event.IsRead),
		strconv.FormatFloat(event.Rating, 'g', -1, 64),
		boolColumn(event.IsReviewed),
	)

	a.mu.Lock()
	defer a.mu.Unlock()
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening interaction log %s: %w", a.path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("appending to interaction log %s: %w", a.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing interaction log %s: %w", a.path, err)
	}
	return nil
}

// HandleRating adapts the appender to the Kafka consumer callback. Events
// that fail validation are logged and dropped rather than retried.
func HandleRating(a *Appender) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RatingEvent](value)
		if err != nil {
			a.logger.Error("failed to decode rating event", "error", err)
			return nil
		}
		if err := a.Append(event); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				a.logger.Warn("dropping invalid rating event", "error", verr)
				return nil
			}
			return err
		}
		a.logger.Debug("rating appended", "user", event.UserID, "book_code", event.BookCode)
		return nil
	}
}

func boolColumn(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
