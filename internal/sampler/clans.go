package sampler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/retry"
)

// ErrNoClans means a discovery pass ended without a single clan.
var ErrNoClans = errors.New("no clans found; check the token, seeds and location filters")

// ClanIndex is the set of clans discovered so far, in discovery order.
// The first name seen for a tag is kept.
type ClanIndex struct {
	order []string
	names map[string]string
}

// NewClanIndex returns an empty index.
func NewClanIndex() *ClanIndex {
	return &ClanIndex{names: make(map[string]string)}
}

// Add records c unless its tag is already present. It reports whether c was new.
func (ix *ClanIndex) Add(c model.Clan) bool {
	if c.Tag == "" {
		return false
	}
	if _, ok := ix.names[c.Tag]; ok {
		return false
	}
	ix.names[c.Tag] = c.Name
	ix.order = append(ix.order, c.Tag)
	return true
}

// Len returns the number of distinct clans.
func (ix *ClanIndex) Len() int { return len(ix.order) }

// Name returns the recorded name for tag.
func (ix *ClanIndex) Name(tag string) (string, bool) {
	n, ok := ix.names[tag]
	return n, ok
}

// Tags returns the clan tags in discovery order.
func (ix *ClanIndex) Tags() []string {
	return append([]string(nil), ix.order...)
}

// SearchOptions are the per-seed search knobs.
type SearchOptions struct {
	Limit      int
	MaxPages   int
	LocationID string
	MinMembers *int
	MaxMembers *int
}

// DiscoverSeed pages through the clan search for seed. A 400 answer ends
// the seed quietly and exhausted retries stop paging; both return whatever
// was collected. Any other failure is returned alongside the partial result.
func (s *Sampler) DiscoverSeed(ctx context.Context, seed string, opts SearchOptions) ([]model.Clan, error) {
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	pol := s.policy("clans_search", clashroyale.ClassifySearch)

	var out []model.Clan
	after := ""
	for page := 0; page < maxPages; page++ {
		params := clashroyale.SearchParams{
			Name:       seed,
			Limit:      opts.Limit,
			After:      after,
			LocationID: opts.LocationID,
			MinMembers: opts.MinMembers,
			MaxMembers: opts.MaxMembers,
		}
		res, err := retry.Do(ctx, pol, func(int) (*clashroyale.ClanSearchPage, error) {
			return s.API.SearchClans(ctx, params)
		})
		switch {
		case errors.Is(err, retry.ErrEmpty):
			return out, nil
		case retry.IsExhausted(err):
			s.Log.Warn().Str("seed", seed).Int("page", page).Err(err).Msg("search retries exhausted")
			return out, nil
		case err != nil:
			return out, fmt.Errorf("search %q page %d: %w", seed, page, err)
		}

		for _, it := range res.Items {
			if it.Tag != "" {
				out = append(out, model.Clan{Tag: it.Tag, Name: it.Name})
			}
		}
		if after = res.Next(); after == "" {
			break
		}
	}
	return out, nil
}

// DiscoverOptions drive a whole discovery pass.
type DiscoverOptions struct {
	Search SearchOptions
	// Locations is drawn from per seed; empty means no location filter.
	Locations []string
}

var (
	windowMins = []int{0, 5, 10, 20}
	windowMaxs = []int{30, 40, 50}
)

// Discover runs DiscoverSeed for every seed in random order and merges the
// hits into index, which is created when nil. A seed that fails is logged
// and skipped. Without a configured member filter, a quarter of the seeds
// search a random member-count window instead. An index that is still empty
// at the end is returned with ErrNoClans.
func (s *Sampler) Discover(ctx context.Context, seeds []string, opts DiscoverOptions, index *ClanIndex) (*ClanIndex, error) {
	if index == nil {
		index = NewClanIndex()
	}
	order := append([]string(nil), seeds...)
	s.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	locations := append([]string(nil), opts.Locations...)
	s.Rand.Shuffle(len(locations), func(i, j int) { locations[i], locations[j] = locations[j], locations[i] })

	for _, seed := range order {
		if err := ctx.Err(); err != nil {
			return index, err
		}
		so := opts.Search
		if so.MinMembers == nil && so.MaxMembers == nil && s.Rand.Float64() < 0.25 {
			so.MinMembers = model.IntPtr(windowMins[s.Rand.IntN(len(windowMins))])
			so.MaxMembers = model.IntPtr(windowMaxs[s.Rand.IntN(len(windowMaxs))])
		}
		if len(locations) > 0 {
			so.LocationID = locations[s.Rand.IntN(len(locations))]
		}

		clans, err := s.DiscoverSeed(ctx, seed, so)
		if err != nil {
			if ctx.Err() != nil {
				return index, ctx.Err()
			}
			s.skipped("clans")
			s.Log.Warn().Str("seed", seed).Err(err).Msg("seed failed")
		}
		added := 0
		for _, c := range clans {
			if index.Add(c) {
				added++
			}
		}
		s.Log.Debug().Str("seed", seed).Int("hits", len(clans)).Int("new", added).Msg("seed done")
	}
	if index.Len() == 0 {
		return index, ErrNoClans
	}
	return index, nil
}

// SampleTags returns up to n clan tags from index in random order.
func SampleTags(rng *rand.Rand, index *ClanIndex, n int) []string {
	return sample(rng, index.Tags(), n)
}

func sample[T any](rng *rand.Rand, items []T, n int) []T {
	out := append([]T(nil), items...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
