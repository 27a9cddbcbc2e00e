package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/artifact"
)

// battlesCmd pulls the battle log of every sampled player.
var battlesCmd = &cobra.Command{
	Use:   "battles",
	Short: "Fetch battle logs of the players in players.txt into raw CSVs",
	Long: `Fetch the recent battle log of each player in players.txt, normalize every
battle, and write battles_raw.csv and battle_cards_raw.csv. Players whose log
cannot be fetched are logged and skipped.`,
	Args: cobra.NoArgs,
	RunE: runBattles,
}

func runBattles(cmd *cobra.Command, args []string) error {
	tags, err := artifact.ReadTags(cfg.DataPath(artifact.PlayersFile), "players")
	if err != nil {
		return err
	}
	return collectBattles(cmd.Context(), tags)
}

func collectBattles(ctx context.Context, tags []string) (err error) {
	s, err := newSampler()
	if err != nil {
		return err
	}
	bp, cp := cfg.DataPath(artifact.BattlesCSV), cfg.DataPath(artifact.BattleCardsCSV)
	w, err := artifact.NewBattleWriter(bp, cp)
	if err != nil {
		return fmt.Errorf("open battle files: %w", err)
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	log.Info().Int("players", len(tags)).Msg("fetching battle logs")
	st, err := s.Collect(ctx, tags, w)
	if err != nil {
		return fmt.Errorf("collect battles: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Done: %d players (%d failed), %d battles, %d card rows → %s\n",
		st.Players, st.Failed, w.Battles, w.CardRows, cfg.DataDir)
	return nil
}
