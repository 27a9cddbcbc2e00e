package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	runSkipCards     bool
	runSkipRetention bool
	runSkipAnalyze   bool
)

// runCmd chains every stage.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline: cards, clans, players, battles, load, retention, analyze",
	Long: `Run every stage in order, each handing its artifact to the next:

  cards → clans → players → battles → load → retention → analyze

A missing token or an unreadable artifact stops the run. Individual seeds,
clans and players that fail are logged and skipped.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runSkipCards, "skip-cards", false, "do not refresh the card catalog")
	f.BoolVar(&runSkipRetention, "skip-retention", false, "do not run the retention sweep")
	f.BoolVar(&runSkipAnalyze, "skip-analyze", false, "do not print the card report")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := cfg.RequireToken(); err != nil {
		return err
	}
	ctx := cmd.Context()
	start := time.Now()

	if !runSkipCards {
		if _, err := syncCards(ctx, true); err != nil {
			return err
		}
	}
	clanTags, err := discoverClans(ctx)
	if err != nil {
		return err
	}
	playerTags, err := harvestPlayers(ctx, clanTags)
	if err != nil {
		return err
	}
	if err := collectBattles(ctx, playerTags); err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := loadArtifacts(ctx, db); err != nil {
		return err
	}
	if !runSkipRetention {
		if err := sweep(ctx, db); err != nil {
			return err
		}
	}
	if !runSkipAnalyze {
		if err := analyze(ctx, "db", time.Time{}); err != nil {
			return err
		}
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("pipeline finished")
	fmt.Fprintf(os.Stdout, "\nPipeline finished in %s\n", time.Since(start).Round(time.Second))
	return nil
}
