package sampler

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/retry"
)

// ErrNoPlayers means no clan yielded a single member.
var ErrNoPlayers = errors.New("no players found in the sampled clans")

// TagSet is a set of player tags already collected.
type TagSet map[string]struct{}

// Has reports whether tag is in the set.
func (ts TagSet) Has(tag string) bool {
	_, ok := ts[tag]
	return ok
}

// Add inserts tag and reports whether it was new.
func (ts TagSet) Add(tag string) bool {
	if ts.Has(tag) {
		return false
	}
	ts[tag] = struct{}{}
	return true
}

// Roster returns the members of one clan. A 404 and exhausted retries both
// yield an empty roster.
func (s *Sampler) Roster(ctx context.Context, clanTag string) ([]model.Player, error) {
	d, err := retry.Do(ctx, s.policy("clan", clashroyale.Classify), func(int) (*clashroyale.ClanDetail, error) {
		return s.API.Clan(ctx, clanTag)
	})
	switch {
	case errors.Is(err, retry.ErrEmpty):
		return nil, nil
	case retry.IsExhausted(err):
		s.Log.Warn().Str("clan_tag", clanTag).Err(err).Msg("clan retries exhausted")
		return nil, nil
	case err != nil:
		return nil, err
	}

	out := make([]model.Player, 0, len(d.MemberList))
	for _, m := range d.MemberList {
		if m.Tag == "" {
			continue
		}
		out = append(out, model.Player{
			Tag:      m.Tag,
			Name:     m.Name,
			Trophies: m.Trophies,
			ClanTag:  d.Tag,
			ClanName: d.Name,
		})
	}
	return out, nil
}

// Harvest collects the members of every clan, keeping each player tag once
// across all clans. seen is updated and returned; nil starts a new set.
func (s *Sampler) Harvest(ctx context.Context, clanTags []string, seen TagSet) ([]model.Player, TagSet) {
	if seen == nil {
		seen = make(TagSet)
	}
	var players []model.Player
	for i, ct := range clanTags {
		if ctx.Err() != nil {
			break
		}
		roster, err := s.Roster(ctx, ct)
		if err != nil {
			s.skipped("players")
			s.Log.Warn().Str("clan_tag", ct).Err(err).Msg("could not fetch members")
			continue
		}
		for _, p := range roster {
			if seen.Add(p.Tag) {
				players = append(players, p)
			}
		}
		if (i+1)%50 == 0 {
			s.Log.Info().Int("clans", i+1).Int("players", len(players)).Msg("harvest progress")
		}
	}
	return players, seen
}

// HarvestPlayers is Harvest from an empty set. It fails with ErrNoPlayers
// when nothing was collected and with the context error on cancellation.
func (s *Sampler) HarvestPlayers(ctx context.Context, clanTags []string) ([]model.Player, error) {
	players, _ := s.Harvest(ctx, clanTags, nil)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	return players, nil
}

// SamplePlayers returns up to n players in random order.
func SamplePlayers(rng *rand.Rand, players []model.Player, n int) []model.Player {
	return sample(rng, players, n)
}
