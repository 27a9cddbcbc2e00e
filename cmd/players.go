package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/artifact"
	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/sampler"
)

// playersCmd expands sampled clans into their members.
var playersCmd = &cobra.Command{
	Use:   "players",
	Short: "Harvest members of the clans in clans.txt and sample players.txt",
	Args:  cobra.NoArgs,
	RunE:  runPlayers,
}

func init() {
	playersCmd.Flags().Int("n-players", 0, "players to sample (default 400)")
	bindFlag(playersCmd.Flags().Lookup("n-players"), config.KeyNumPlayers)
}

func runPlayers(cmd *cobra.Command, args []string) error {
	clanTags, err := artifact.ReadTags(cfg.DataPath(artifact.ClansFile), "clans")
	if err != nil {
		return err
	}
	_, err = harvestPlayers(cmd.Context(), clanTags)
	return err
}

func harvestPlayers(ctx context.Context, clanTags []string) ([]string, error) {
	s, err := newSampler()
	if err != nil {
		return nil, err
	}
	log.Info().Int("clans", len(clanTags)).Msg("harvesting members")
	players, err := s.HarvestPlayers(ctx, clanTags)
	if err != nil {
		return nil, fmt.Errorf("harvest players: %w", err)
	}

	sampled := sampler.SamplePlayers(s.Rand, players, cfg.Sampling.NumPlayers)
	tags := make([]string, 0, len(sampled))
	for _, p := range sampled {
		tags = append(tags, p.Tag)
	}

	if err := writePlayers(players, tags); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stdout, "Done: %d players found, %d sampled → %s\n",
		len(players), len(tags), cfg.DataPath(artifact.PlayersFile))
	return tags, nil
}

func writePlayers(all []model.Player, sampled []string) error {
	csvPath := cfg.DataPath(artifact.PlayersCSV)
	if err := artifact.WritePlayers(csvPath, all); err != nil {
		return fmt.Errorf("write %s: %w", csvPath, err)
	}
	txtPath := cfg.DataPath(artifact.PlayersFile)
	if err := artifact.WriteTags(txtPath, sampled); err != nil {
		return fmt.Errorf("write %s: %w", txtPath, err)
	}
	return nil
}
