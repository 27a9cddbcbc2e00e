// Package sampler walks the public API from name seeds to clans, clans to
// players, and players to battle logs. Every upstream call runs under its
// own retry policy; a unit that fails is logged and skipped.
package sampler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/metrics"
	"github.com/pable/go-cr-metrics/internal/retry"
)

// API is the part of the Clash Royale client the sampler calls.
type API interface {
	SearchClans(ctx context.Context, p clashroyale.SearchParams) (*clashroyale.ClanSearchPage, error)
	Clan(ctx context.Context, tag string) (*clashroyale.ClanDetail, error)
	BattleLog(ctx context.Context, tag string) ([]clashroyale.Battle, error)
}

// Sampler holds the shared dependencies of every stage.
type Sampler struct {
	API API
	// Policy is the retry template; Classify is set per endpoint.
	Policy retry.Policy
	Log    zerolog.Logger
	Rand   *rand.Rand
}

// New returns a Sampler with the default retry policy and a time-seeded rng.
func New(api API, log zerolog.Logger) *Sampler {
	now := uint64(time.Now().UnixNano())
	return &Sampler{
		API:    api,
		Policy: retry.Default(),
		Log:    log,
		Rand:   rand.New(rand.NewPCG(now, now>>1|1)),
	}
}

func (s *Sampler) policy(endpoint string, classify func(error) retry.Outcome) retry.Policy {
	p := s.Policy
	p.Classify = classify
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.APIRetries.WithLabelValues(endpoint).Inc()
		s.Log.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("retrying")
	}
	return p
}

func (s *Sampler) skipped(stage string) {
	metrics.UnitsSkipped.WithLabelValues(stage).Inc()
}
