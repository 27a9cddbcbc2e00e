package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/artifact"
	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/loader"
	"github.com/pable/go-cr-metrics/internal/storage"
)

// loadCmd loads the raw CSVs into storage.
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load cards.csv and the raw battle CSVs into the database",
	Long: `Upsert cards.csv (when present) into the cards table, then insert
battles_raw.csv and battle_cards_raw.csv in batches, one transaction per batch.
Rows already stored are skipped, so loading the same files twice is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().Int("batch-size", 0, "rows per transaction (default 5000)")
	bindFlag(loadCmd.Flags().Lookup("batch-size"), config.KeyBatchSize)
}

func runLoad(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return loadArtifacts(cmd.Context(), db)
}

func loadArtifacts(ctx context.Context, db *storage.DB) error {
	// Read everything first so a bad file aborts before any write.
	battles, err := artifact.ReadBattles(cfg.DataPath(artifact.BattlesCSV))
	if err != nil {
		return err
	}
	cards, err := artifact.ReadBattleCards(cfg.DataPath(artifact.BattleCardsCSV))
	if err != nil {
		return err
	}
	catalog, err := artifact.ReadCards(cfg.DataPath(artifact.CardsCSV))
	var missing *artifact.MissingFileError
	switch {
	case errors.As(err, &missing):
		log.Warn().Str("path", missing.Path).Msg("no card catalog, card names will be ids")
	case err != nil:
		return err
	default:
		n, err := db.UpsertCards(ctx, catalog)
		if err != nil {
			return fmt.Errorf("upsert cards: %w", err)
		}
		log.Info().Int("rows", n).Msg("cards upserted")
	}

	l := loader.New(db, log)
	l.BatchSize = cfg.BatchSize
	bst, err := l.LoadBattles(ctx, battles)
	if err != nil {
		return fmt.Errorf("load battles: %w", err)
	}
	cst, err := l.LoadBattleCards(ctx, cards)
	if err != nil {
		return fmt.Errorf("load battle cards: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Done: battles %s\n      battle_cards %s\n", bst, cst)
	return nil
}
