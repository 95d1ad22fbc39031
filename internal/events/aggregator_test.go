package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func track(t *testing.T, agg *Aggregator, event any) {
	t.Helper()
	value, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshaling event: %v", err)
	}
	if err := HandleEvent(agg)(context.Background(), []byte("usage"), value); err != nil {
		t.Fatalf("handling event: %v", err)
	}
}

func TestAggregatorCountsByType(t *testing.T) {
	agg := NewAggregator()
	now := time.Now()

	track(t, agg, SearchEvent{Type: EventSearch, Query: "dune", Returned: 10, LatencyMs: 12, Timestamp: now})
	track(t, agg, SearchEvent{Type: EventSearch, Query: "dune", Returned: 10, LatencyMs: 8, CacheHit: true, Timestamp: now})
	track(t, agg, SearchEvent{Type: EventSearch, Query: "xyzzy", Returned: 0, LatencyMs: 5, Timestamp: now})
	track(t, agg, RecommendEvent{Type: EventRecommend, LikedCount: 3, Returned: 7, Timestamp: now})
	track(t, agg, LikedEvent{Type: EventLike, BookID: "42", Timestamp: now})
	track(t, agg, LikedEvent{Type: EventLike, BookID: "42", Timestamp: now})
	track(t, agg, LikedEvent{Type: EventUnlike, BookID: "42", Timestamp: now})

	stats := agg.Stats()
	if stats.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", stats.TotalSearches)
	}
	if stats.TotalRecommendations != 1 {
		t.Errorf("TotalRecommendations = %d, want 1", stats.TotalRecommendations)
	}
	if stats.TotalLikes != 2 || stats.TotalUnlikes != 1 {
		t.Errorf("likes/unlikes = %d/%d, want 2/1", stats.TotalLikes, stats.TotalUnlikes)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "dune" {
		t.Errorf("top query = %+v, want dune first", stats.TopQueries)
	}
	if len(stats.MostLikedBooks) != 1 || stats.MostLikedBooks[0].Count != 2 {
		t.Errorf("most liked = %+v, want book 42 twice", stats.MostLikedBooks)
	}
}

func TestAggregatorSkipsUndecodableEvent(t *testing.T) {
	agg := NewAggregator()
	if err := HandleEvent(agg)(context.Background(), []byte("usage"), []byte("{not json")); err != nil {
		t.Fatalf("handler returned error for bad payload: %v", err)
	}
	if stats := agg.Stats(); stats.TotalSearches != 0 {
		t.Errorf("bad payload counted: %+v", stats)
	}
}
