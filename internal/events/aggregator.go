package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/readscape/readscape/pkg/kafka"
)

type AggregatedStats struct {
	TotalSearches        int64        `json:"total_searches"`
	TotalRecommendations int64        `json:"total_recommendations"`
	TotalTimeRecs        int64        `json:"total_time_recommendations"`
	TotalLikes           int64        `json:"total_likes"`
	TotalUnlikes         int64        `json:"total_unlikes"`
	CacheHits            int64        `json:"cache_hits"`
	CacheMisses          int64        `json:"cache_misses"`
	ZeroResultCount      int64        `json:"zero_result_count"`
	AvgSearchLatencyMs   float64      `json:"avg_search_latency_ms"`
	P50SearchLatencyMs   int64        `json:"p50_search_latency_ms"`
	P95SearchLatencyMs   int64        `json:"p95_search_latency_ms"`
	TopQueries           []QueryCount `json:"top_queries"`
	ZeroResultQueries    []QueryCount `json:"zero_result_queries"`
	MostLikedBooks       []QueryCount `json:"most_liked_books"`
	SearchesPerMinute    float64      `json:"searches_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds the usage event stream into in-memory counters served by
// the stats endpoint.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	totalRecommends   atomic.Int64
	totalTimeRecs     atomic.Int64
	totalLikes        atomic.Int64
	totalUnlikes      atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	searchLatencies   []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	likedBooks        map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		searchLatencies:   make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		likedBooks:        make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "events-aggregator"),
	}
}

// Start consumes the usage topic until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("events aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent dispatches a raw Kafka message to the right record method by
// its type field. Undecodable events are logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		probe, err := kafka.DecodeJSON[struct {
			Type EventType `json:"type"`
		}](value)
		if err != nil {
			agg.logger.Error("failed to decode usage event", "error", err)
			return nil
		}
		switch probe.Type {
		case EventSearch:
			if event, err := kafka.DecodeJSON[SearchEvent](value); err == nil {
				agg.recordSearch(event)
			}
		case EventRecommend:
			agg.totalRecommends.Add(1)
		case EventTimeRec:
			agg.totalTimeRecs.Add(1)
		case EventLike, EventUnlike:
			if event, err := kafka.DecodeJSON[LikedEvent](value); err == nil {
				agg.recordLiked(event)
			}
		default:
			agg.logger.Warn("unknown usage event type", "type", probe.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordSearch(event SearchEvent) {
	a.totalSearches.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Returned == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.searchLatencies = append(a.searchLatencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.Returned == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordLiked(event LikedEvent) {
	if event.Type == EventLike {
		a.totalLikes.Add(1)
		a.mu.Lock()
		a.likedBooks[event.BookID]++
		a.mu.Unlock()
		return
	}
	a.totalUnlikes.Add(1)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:        a.totalSearches.Load(),
		TotalRecommendations: a.totalRecommends.Load(),
		TotalTimeRecs:        a.totalTimeRecs.Load(),
		TotalLikes:           a.totalLikes.Load(),
		TotalUnlikes:         a.totalUnlikes.Load(),
		CacheHits:            a.cacheHits.Load(),
		CacheMisses:          a.cacheMisses.Load(),
		ZeroResultCount:      a.zeroResults.Load(),
	}
	if len(a.searchLatencies) > 0 {
		sorted := make([]int64, len(a.searchLatencies))
		copy(sorted, a.searchLatencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgSearchLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50SearchLatencyMs = percentile(sorted, 50)
		stats.P95SearchLatencyMs = percentile(sorted, 95)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.MostLikedBooks = topN(a.likedBooks, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.SearchesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
