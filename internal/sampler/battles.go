package sampler

import (
	"context"
	"errors"
	"fmt"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
	"github.com/pable/go-cr-metrics/internal/retry"
)

// Sink receives one normalized battle and its card rows.
type Sink interface {
	WriteBattle(b model.Battle, cards []model.BattleCard) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(b model.Battle, cards []model.BattleCard) error

// WriteBattle calls f.
func (f SinkFunc) WriteBattle(b model.Battle, cards []model.BattleCard) error { return f(b, cards) }

// CollectStats summarises a Collect pass.
type CollectStats struct {
	Players int
	Failed  int
	Battles int
	Cards   int
}

// FetchLog returns the player's battle log. An unknown player and an empty
// body both give an empty log.
func (s *Sampler) FetchLog(ctx context.Context, tag string) ([]clashroyale.Battle, error) {
	log, err := retry.Do(ctx, s.policy("battlelog", clashroyale.Classify), func(int) ([]clashroyale.Battle, error) {
		return s.API.BattleLog(ctx, tag)
	})
	if errors.Is(err, retry.ErrEmpty) {
		return nil, nil
	}
	return log, err
}

// Collect fetches and normalizes the battle log of each player and passes
// every battle to sink. A player whose log cannot be fetched is skipped;
// a sink error aborts the pass.
func (s *Sampler) Collect(ctx context.Context, tags []string, sink Sink) (CollectStats, error) {
	var st CollectStats
	for i, tag := range tags {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		log, err := s.FetchLog(ctx, tag)
		if err != nil {
			st.Failed++
			s.skipped("battles")
			s.Log.Warn().Str("player_tag", tag).Err(err).Msg("battle log failed")
			continue
		}
		st.Players++
		for _, raw := range log {
			b, cards := normalize.Battle(raw)
			if err := sink.WriteBattle(b, cards); err != nil {
				return st, fmt.Errorf("write battle %s: %w", b.BattleID, err)
			}
			st.Battles++
			st.Cards += len(cards)
		}
		if (i+1)%50 == 0 {
			s.Log.Info().Int("players", i+1).Int("battles", st.Battles).Msg("players processed")
		}
	}
	return st, nil
}
