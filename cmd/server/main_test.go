package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/pkg/config"
)

// Redis being down must not disable per-query memoization: the wiring falls
// back to a client-less cache serving the in-process memo.
func TestNewQueryCacheWithoutRedis(t *testing.T) {
	qc, client, closeFn := newQueryCache(config.RedisConfig{Addr: "127.0.0.1:1"})
	defer closeFn()
	if qc == nil {
		t.Fatal("no cache constructed when redis is unreachable")
	}
	if client != nil {
		t.Fatal("got a redis client for an unreachable server")
	}

	calls := 0
	compute := func() []catalog.Book {
		calls++
		return []catalog.Book{{BookID: "1", Title: "Dune"}}
	}
	qc.GetOrCompute(context.Background(), "dune", 10, compute)
	_, hit := qc.GetOrCompute(context.Background(), "dune", 10, compute)
	if !hit {
		t.Error("second identical query missed the memo")
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

func TestBuildLikedStoreBackends(t *testing.T) {
	store, err := buildLikedStore(config.LikedConfig{Path: filepath.Join(t.TempDir(), "liked.csv")}, nil)
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if store == nil {
		t.Fatal("default backend returned nil store")
	}

	if _, err := buildLikedStore(config.LikedConfig{Backend: "postgres"}, nil); err == nil {
		t.Error("postgres backend without a connection did not error")
	}
	if _, err := buildLikedStore(config.LikedConfig{Backend: "mongo"}, nil); err == nil {
		t.Error("unknown backend did not error")
	}
}
