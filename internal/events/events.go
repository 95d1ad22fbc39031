package events

import "time"

type EventType string

const (
	EventSearch    EventType = "search"
	EventRecommend EventType = "recommend"
	EventTimeRec   EventType = "time_recommend"
	EventLike      EventType = "like"
	EventUnlike    EventType = "unlike"
)

// SearchEvent records one title search, cache hits included.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// RecommendEvent records one collaborative-filtering run.
type RecommendEvent struct {
	Type       EventType `json:"type"`
	LikedCount int       `json:"liked_count"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// LikedEvent records a like or unlike of a single book.
type LikedEvent struct {
	Type      EventType `json:"type"`
	BookID    string    `json:"book_id"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
