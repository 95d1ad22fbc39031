// Package cache memoizes title search results per distinct query for the
// lifetime of the process, with an optional Redis layer shared across
// restarts. The memo layer must never change results: a cached entry is
// exactly what the index returned for that query.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/pkg/config"
	pkgredis "github.com/readscape/readscape/pkg/redis"
	"github.com/readscape/readscape/pkg/resilience"
)

const keyPrefix = "search:"

// QueryCache wraps the title index with a process-local memo and an optional
// Redis layer. Redis failures trip a circuit breaker so a flapping cache
// server cannot slow the search path; the local memo keeps working either
// way.
type QueryCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	local   sync.Map
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a QueryCache. client may be nil, in which case only the
// process-local memo is used.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("search-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// GetOrCompute returns the memoized rows for the query, computing and storing
// them on first sight. Concurrent identical queries share one computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	k int,
	computeFn func() []catalog.Book,
) ([]catalog.Book, bool) {
	key := c.buildKey(query, k)
	if rows, ok := c.get(ctx, key); ok {
		c.hits.Add(1)
		return rows, true
	}
	c.misses.Add(1)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		if rows, ok := c.get(ctx, key); ok {
			return rows, nil
		}
		rows := computeFn()
		c.set(ctx, key, rows)
		return rows, nil
	})
	return val.([]catalog.Book), false
}

// Invalidate drops the local memo and flushes the Redis keyspace.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	c.local.Range(func(key, _ any) bool {
		c.local.Delete(key)
		return true
	})
	if c.client == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating search cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters since process start.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) get(ctx context.Context, key string) ([]catalog.Book, bool) {
	if rows, ok := c.local.Load(key); ok {
		return rows.([]catalog.Book), true
	}
	if c.client == nil {
		return nil, false
	}
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNilError(getErr) {
			data = ""
			return nil
		}
		return getErr
	})
	if err != nil || data == "" {
		return nil, false
	}
	var rows []catalog.Book
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	c.local.Store(key, rows)
	return rows, true
}

func (c *QueryCache) set(ctx context.Context, key string, rows []catalog.Book) {
	c.local.Store(key, rows)
	if c.client == nil {
		return
	}
	data, err := json.Marshal(rows)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	}); err != nil {
		c.logger.Debug("cache set skipped", "key", key, "error", err)
	}
}

// buildKey hashes the lowercased query plus the result size. The key must
// track exactly what the vectorizer sees: queries that tokenize differently
// ("ab.cd" splits into two tokens, "abcd" is one) must never share an entry.
func (c *QueryCache) buildKey(query string, k int) string {
	raw := fmt.Sprintf("%s:k=%d", strings.ToLower(query), k)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
