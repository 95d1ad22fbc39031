// Package ingest appends rating events to the interaction log. Events arrive
// over Kafka, are validated, and are serialised as the same five-column
// comma-separated lines the recommendation passes scan.
package ingest

import (
	"fmt"
	"strings"
	"time"
)

// RatingEvent is the Kafka payload for one user rating a book. BookCode is
// the external catalog code, the same namespace the id map translates.
type RatingEvent struct {
	UserID     string    `json:"user_id"`
	BookCode   string    `json:"book_code"`
	IsRead     bool      `json:"is_read"`
	Rating     float64   `json:"rating"`
	IsReviewed bool      `json:"is_reviewed"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// Validate checks that an event can be serialised as a log line without
// corrupting the column structure.
func Validate(event RatingEvent) error {
	errs := make(map[string]string)

	if strings.TrimSpace(event.UserID) == "" {
		errs["user_id"] = "user id is required"
	} else if strings.Contains(event.UserID, ",") || strings.ContainsAny(event.UserID, "\r\n") {
		errs["user_id"] = "user id must not contain commas or newlines"
	}
	if strings.TrimSpace(event.BookCode) == "" {
		errs["book_code"] = "book code is required"
	} else if strings.Contains(event.BookCode, ",") || strings.ContainsAny(event.BookCode, "\r\n") {
		errs["book_code"] = "book code must not contain commas or newlines"
	}
	if event.Rating < 0 || event.Rating > 5 {
		errs["rating"] = "rating must be between 0 and 5"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
