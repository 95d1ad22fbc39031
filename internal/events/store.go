package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/readscape/readscape/pkg/postgres"
)

// Store persists aggregated usage snapshots in PostgreSQL so stats survive a
// restart of the aggregator.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.Default().With("component", "events-store"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_snapshots (
			id          BIGSERIAL PRIMARY KEY,
			data        JSONB NOT NULL,
			captured_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("creating usage_snapshots table: %w", err)
	}
	return s, nil
}

// snapshotRetention bounds table growth; one snapshot every five minutes for
// a week is around two thousand rows.
const snapshotRetention = 7 * 24 * time.Hour

// SaveSnapshot persists one stats snapshot and prunes entries past the
// retention window in the same transaction.
func (s *Store) SaveSnapshot(ctx context.Context, stats AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	now := time.Now().UTC()
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO usage_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, now,
		); err != nil {
			return fmt.Errorf("inserting usage snapshot: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM usage_snapshots WHERE captured_at < $1`,
			now.Add(-snapshotRetention),
		); err != nil {
			return fmt.Errorf("pruning usage snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving usage snapshot: %w", err)
	}
	s.logger.Info("usage snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_recommendations", stats.TotalRecommendations,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil when none exist.
func (s *Store) LatestSnapshot(ctx context.Context) (*AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM usage_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots the aggregator at the given interval and once
// more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
