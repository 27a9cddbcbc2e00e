package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/normalize"
	"github.com/pable/go-cr-metrics/internal/report"
	"github.com/pable/go-cr-metrics/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <id-prefix>",
	Short: "Show a stored battle and both decks by battle id prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return printBattle(cmd.Context(), db, args[0])
}

func printBattle(ctx context.Context, db *storage.DB, prefix string) error {
	b, err := db.BattleByPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("query battle: %w", err)
	}
	if b == nil {
		fmt.Fprintf(os.Stderr, "No battle found with id prefix %q\n", prefix)
		return nil
	}
	b.Won = normalize.Outcome(b.PlayerCrowns, b.OpponentCrowns)

	cards, err := db.BattleCards(ctx, b.BattleID)
	if err != nil {
		return fmt.Errorf("get battle cards: %w", err)
	}
	names, err := db.CardNames(ctx)
	if err != nil {
		return fmt.Errorf("get card names: %w", err)
	}

	report.PrintBattle(os.Stdout, *b, cards, names)
	return nil
}
