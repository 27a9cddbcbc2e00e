package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/report"
	"github.com/pable/go-cr-metrics/internal/storage"
)

// summaryCmd is the cobra command for displaying a high-level database overview.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display row counts, the stored battle time range and the battle count of
every game mode.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return printSummary(cmd.Context(), db)
}

func printSummary(ctx context.Context, db *storage.DB) error {
	counts, err := db.Counts(ctx)
	if err != nil {
		return fmt.Errorf("get counts: %w", err)
	}
	if counts.Battles == 0 && counts.Cards == 0 {
		fmt.Fprintln(os.Stdout, "Nothing stored yet. Run 'crmetrics run' or 'crmetrics load' to add battles.")
		return nil
	}
	modes, err := db.Overview(ctx)
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}

	fmt.Fprintf(os.Stdout, "\n=== Database Summary (%s) ===\n", db.Dialect())
	report.PrintOverview(os.Stdout, counts, modes)
	return nil
}
