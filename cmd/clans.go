package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/artifact"
	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/sampler"
)

// clansCmd discovers clans from name seeds.
var clansCmd = &cobra.Command{
	Use:   "clans",
	Short: "Discover clans by name search and sample their tags into clans.txt",
	Long: `Search clans for a set of short name seeds (a few common words plus random
strings), page through the results, and write a random sample of the distinct
clan tags to clans.txt. Seeds that fail are logged and skipped.`,
	Args: cobra.NoArgs,
	RunE: runClans,
}

func init() {
	f := clansCmd.Flags()
	f.Int("n-clans", 0, "clan tags to sample (default 300)")
	f.Int("num-seeds", 0, "name seeds to search (default 80)")
	f.Int("max-pages", 0, "search pages per seed (default 6)")
	f.String("locations", "", "comma-separated location ids drawn from per seed")
	bindFlag(f.Lookup("n-clans"), config.KeyNumClans)
	bindFlag(f.Lookup("num-seeds"), config.KeyNumSeeds)
	bindFlag(f.Lookup("max-pages"), config.KeyMaxPages)
	bindFlag(f.Lookup("locations"), config.KeyLocations)
}

func runClans(cmd *cobra.Command, args []string) error {
	_, err := discoverClans(cmd.Context())
	return err
}

func discoverClans(ctx context.Context) ([]string, error) {
	s, err := newSampler()
	if err != nil {
		return nil, err
	}
	sc := cfg.Sampling
	seeds := sampler.Seeds(s.Rand, sc.NumSeeds, sc.SeedMinLen, sc.SeedMaxLen)
	log.Info().Int("seeds", len(seeds)).Strs("locations", sc.Locations).Msg("discovering clans")

	index, err := s.Discover(ctx, seeds, sampler.DiscoverOptions{
		Search: sampler.SearchOptions{
			Limit:      sc.PageLimit,
			MaxPages:   sc.MaxPages,
			MinMembers: sc.MinMembers,
			MaxMembers: sc.MaxMembers,
		},
		Locations: sc.Locations,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("discover clans: %w", err)
	}

	tags := sampler.SampleTags(s.Rand, index, sc.NumClans)
	path := cfg.DataPath(artifact.ClansFile)
	if err := artifact.WriteTags(path, tags); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stdout, "Done: %d clans found, %d sampled → %s\n", index.Len(), len(tags), path)
	return tags, nil
}
