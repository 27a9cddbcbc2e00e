// Package loader writes normalized rows into the store in fixed-size
// batches, one transaction per batch. Loading the same rows twice is a no-op.
package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pable/go-cr-metrics/internal/metrics"
	"github.com/pable/go-cr-metrics/internal/model"
)

// DefaultBatchSize is the number of rows per transaction.
const DefaultBatchSize = 5000

// Store is the insert side of the battle store.
type Store interface {
	InsertBattles(ctx context.Context, battles []model.Battle) (int, error)
	InsertBattleCards(ctx context.Context, cards []model.BattleCard) (int, error)
}

// Stats counts rows through one load.
type Stats struct {
	Read     int
	Inserted int
	// Skipped rows were already stored, or belong to a battle that is not.
	Skipped int
	// Rejected rows could not be stored at all.
	Rejected int
}

func (s Stats) String() string {
	return fmt.Sprintf("read=%d inserted=%d skipped=%d rejected=%d", s.Read, s.Inserted, s.Skipped, s.Rejected)
}

// Loader batches rows into a Store.
type Loader struct {
	Store     Store
	BatchSize int
	Log       zerolog.Logger
}

// New returns a Loader with the default batch size.
func New(store Store, log zerolog.Logger) *Loader {
	return &Loader{Store: store, BatchSize: DefaultBatchSize, Log: log}
}

func (l *Loader) size() int {
	if l.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return l.BatchSize
}

// LoadBattles inserts fact rows. Rows without a battle time are rejected.
func (l *Loader) LoadBattles(ctx context.Context, battles []model.Battle) (Stats, error) {
	var st Stats
	batch := make([]model.Battle, 0, min(l.size(), len(battles)))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.Store.InsertBattles(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert battles batch: %w", err)
		}
		st.Inserted += n
		st.Skipped += len(batch) - n
		l.Log.Debug().Int("rows", len(batch)).Int("inserted", n).Msg("battles batch committed")
		batch = batch[:0]
		return nil
	}

	for _, b := range battles {
		st.Read++
		if b.BattleTime == nil {
			st.Rejected++
			l.Log.Warn().Str("battle_id", b.BattleID).Str("player_tag", b.PlayerTag).Msg("battle without time rejected")
			continue
		}
		batch = append(batch, b)
		if len(batch) >= l.size() {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}
	if err := flush(); err != nil {
		return st, err
	}
	record("fact_battles", st)
	return st, nil
}

// LoadBattleCards inserts card rows. Rows whose battle is not stored are skipped.
func (l *Loader) LoadBattleCards(ctx context.Context, cards []model.BattleCard) (Stats, error) {
	var st Stats
	batch := make([]model.BattleCard, 0, min(l.size(), len(cards)))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.Store.InsertBattleCards(ctx, batch)
		if err != nil {
			return fmt.Errorf("insert battle_cards batch: %w", err)
		}
		st.Inserted += n
		st.Skipped += len(batch) - n
		batch = batch[:0]
		return nil
	}

	for _, c := range cards {
		st.Read++
		if c.Side == model.SideUnknown {
			st.Rejected++
			l.Log.Warn().Str("battle_id", c.BattleID).Int64("card_id", c.CardID).Msg("card row without side rejected")
			continue
		}
		batch = append(batch, c)
		if len(batch) >= l.size() {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}
	if err := flush(); err != nil {
		return st, err
	}
	record("battle_cards", st)
	return st, nil
}

func record(table string, st Stats) {
	metrics.RowsLoaded.WithLabelValues(table, "inserted").Add(float64(st.Inserted))
	metrics.RowsLoaded.WithLabelValues(table, "skipped").Add(float64(st.Skipped))
	metrics.RowsLoaded.WithLabelValues(table, "rejected").Add(float64(st.Rejected))
}
