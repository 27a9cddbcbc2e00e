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

var (
	listPlayer string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent stored battles",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listPlayer, "player", "", "only battles reported by this player tag (e.g. #2PP)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "number of battles to show")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return printBattles(cmd.Context(), db, listPlayer, listLimit)
}

func printBattles(ctx context.Context, db *storage.DB, player string, limit int) error {
	battles, err := db.ListBattles(ctx, player, limit)
	if err != nil {
		return fmt.Errorf("list battles: %w", err)
	}
	if len(battles) == 0 {
		fmt.Fprintln(os.Stdout, "No battles stored yet. Run 'crmetrics run' to sample some.")
		return nil
	}
	for i := range battles {
		battles[i].Won = normalize.Outcome(battles[i].PlayerCrowns, battles[i].OpponentCrowns)
	}
	report.PrintBattleList(os.Stdout, battles)
	return nil
}
