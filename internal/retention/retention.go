// Package retention deletes battles older than a rolling horizon in small
// batches, then asks the store to reclaim the space.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pable/go-cr-metrics/internal/metrics"
)

const (
	DefaultHorizon   = 90 * 24 * time.Hour
	DefaultBatchSize = 10000
)

// Store is the delete side of the battle store.
type Store interface {
	DeleteBattlesBefore(ctx context.Context, cutoff time.Time, limit int) (int, error)
	Reclaim(ctx context.Context) error
}

// Sweeper enforces the retention horizon.
type Sweeper struct {
	Store     Store
	Horizon   time.Duration
	BatchSize int
	Now       func() time.Time
	Log       zerolog.Logger
}

// New returns a Sweeper with the default horizon and batch size.
func New(store Store, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Store:     store,
		Horizon:   DefaultHorizon,
		BatchSize: DefaultBatchSize,
		Now:       time.Now,
		Log:       log,
	}
}

// Result summarises one sweep.
type Result struct {
	Cutoff  time.Time
	Deleted int
	Batches int
}

// Sweep deletes every battle older than now minus Horizon, one batch at a
// time until a batch comes back empty, then reclaims space.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	horizon := s.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	res := Result{Cutoff: now().UTC().Add(-horizon)}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := s.Store.DeleteBattlesBefore(ctx, res.Cutoff, batch)
		if err != nil {
			return res, fmt.Errorf("retention batch %d: %w", res.Batches+1, err)
		}
		if n == 0 {
			break
		}
		res.Deleted += n
		res.Batches++
		metrics.RowsDeleted.Add(float64(n))
		s.Log.Info().Int("deleted", n).Int("batch", res.Batches).Msg("retention batch")
	}

	if err := s.Store.Reclaim(ctx); err != nil {
		return res, fmt.Errorf("reclaim: %w", err)
	}
	s.Log.Info().
		Time("cutoff", res.Cutoff).
		Int("deleted", res.Deleted).
		Msg("retention applied")
	return res, nil
}
