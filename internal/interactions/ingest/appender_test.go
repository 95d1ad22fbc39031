package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendWritesFiveColumnLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.csv")
	a := NewAppender(path)

	events := []RatingEvent{
		{UserID: "u1", BookCode: "X42", IsRead: true, Rating: 4.5},
		{UserID: "u2", BookCode: "X99", Rating: 3},
	}
	for _, e := range events {
		if err := a.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "u1,X42,1,4.5,0" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "u2,X99,0,3,0" {
		t.Errorf("line 1 = %q", lines[1])
	}
	for _, line := range lines {
		if got := len(strings.Split(line, ",")); got != 5 {
			t.Errorf("line %q has %d columns, want 5", line, got)
		}
	}
}

func TestValidateRejectsCorruptingFields(t *testing.T) {
	cases := []struct {
		name  string
		event RatingEvent
		field string
	}{
		{"empty user", RatingEvent{BookCode: "X1", Rating: 4}, "user_id"},
		{"comma in user", RatingEvent{UserID: "a,b", BookCode: "X1", Rating: 4}, "user_id"},
		{"empty book code", RatingEvent{UserID: "u1", Rating: 4}, "book_code"},
		{"newline in book code", RatingEvent{UserID: "u1", BookCode: "X\n1", Rating: 4}, "book_code"},
		{"rating out of range", RatingEvent{UserID: "u1", BookCode: "X1", Rating: 6}, "rating"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.event)
			if err == nil {
				t.Fatal("Validate accepted invalid event")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("error type %T, want *ValidationError", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Errorf("missing %s in fields: %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestHandleRatingDropsInvalidEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interactions.csv")
	a := NewAppender(path)
	handler := HandleRating(a)

	if err := handler(context.Background(), nil, []byte(`{"user_id":"","book_code":"X1","rating":4}`)); err != nil {
		t.Fatalf("handler returned error for invalid event: %v", err)
	}
	if err := handler(context.Background(), nil, []byte(`not json`)); err != nil {
		t.Fatalf("handler returned error for bad payload: %v", err)
	}
	if err := handler(context.Background(), nil, []byte(`{"user_id":"u1","book_code":"X1","rating":5}`)); err != nil {
		t.Fatalf("handler failed for valid event: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("got %d lines, want only the valid event", len(lines))
	}
}
