package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/aggregator"
	"github.com/pable/go-cr-metrics/internal/artifact"
	"github.com/pable/go-cr-metrics/internal/config"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/report"
)

var (
	analyzeSource string
	analyzeSince  string
	analyzeBins   bool
	analyzeNoCSV  bool
)

// analyzeCmd reports card usage and win rate.
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report card usage and win rate, overall and per trophy bin",
	Long: `Collapse stored battles to one outcome each, then compute per card:
  usage  = battles containing the card (either side) / all battles
  win%   = battles won by the side holding the card / battles with a known winner

Battles where no row shows a crown difference count towards usage but not win%.
Trophy bins use the mean starting trophies of both sides.

Results are printed and written to cards_summary_overall.csv and
cards_summary_per_trophy_bin.csv in the data directory.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeSource, "source", "db", "read battles from db or csv (the raw files in the data directory)")
	f.StringVar(&analyzeSince, "since", "", "only battles on or after this date (YYYY-MM-DD)")
	f.BoolVar(&analyzeBins, "bins", false, "print the full tables of every trophy bin")
	f.BoolVar(&analyzeNoCSV, "no-csv", false, "do not write the summary CSVs")
	f.Int("topn", 0, "rows per table (default 30)")
	f.Int("min-sample", 0, "minimum appearances for the win-rate ranking (default 50)")
	f.Int("bin-size", 0, "trophy bin width (default 5000)")
	f.Int("min-trophy", 0, "lowest trophy level binned")
	f.Int("max-trophy", 0, "trophy level where binning stops (default 15000)")
	bindFlag(f.Lookup("topn"), config.KeyTopN)
	bindFlag(f.Lookup("min-sample"), config.KeyMinSample)
	bindFlag(f.Lookup("bin-size"), config.KeyBinSize)
	bindFlag(f.Lookup("min-trophy"), config.KeyMinTrophy)
	bindFlag(f.Lookup("max-trophy"), config.KeyMaxTrophy)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	var since time.Time
	if analyzeSince != "" {
		t, err := time.Parse("2006-01-02", analyzeSince)
		if err != nil {
			return fmt.Errorf("invalid --since %q: want YYYY-MM-DD", analyzeSince)
		}
		since = t
	}
	return analyze(cmd.Context(), analyzeSource, since)
}

func analyze(ctx context.Context, source string, since time.Time) error {
	ac := cfg.Analysis
	bins := aggregator.Bins{Min: ac.MinTrophy, Max: ac.MaxTrophy, Width: ac.BinSize}
	if err := bins.Validate(); err != nil {
		return err
	}

	var (
		battleRows []aggregator.BattleRow
		cardRows   []aggregator.CardRow
		names      map[int64]string
		err        error
	)
	switch source {
	case "db":
		battleRows, cardRows, names, err = inputFromDB(ctx, since)
	case "csv":
		battleRows, cardRows, names, err = inputFromCSV(since)
	default:
		return fmt.Errorf("unknown --source %q: want db or csv", source)
	}
	if err != nil {
		return err
	}

	battles := aggregator.CollapseBattles(battleRows)
	if len(battles) == 0 {
		fmt.Fprintln(os.Stdout, "No battles to analyze. Run 'crmetrics battles' and 'crmetrics load' first.")
		return nil
	}
	decided := 0
	for _, b := range battles {
		if b.Winner != model.SideUnknown {
			decided++
		}
	}
	fmt.Fprintf(os.Stdout, "\nBattles: %d (%d with a winner)\n", len(battles), decided)

	overall := aggregator.Overall(battles, cardRows, names)
	report.PrintMostUsed(os.Stdout, "=== Most used cards ===", overall, ac.TopN)
	report.PrintBestWinRate(os.Stdout, "=== Highest win rate ===", overall, ac.MinSample, ac.TopN)

	perBin := aggregator.ByTrophyBin(battles, cardRows, names, bins)
	groups := aggregator.GroupByBin(perBin)
	fmt.Fprintf(os.Stdout, "\n=== Trophy bins (width %d) ===\n", bins.Width)
	report.PrintBinSummary(os.Stdout, groups)
	if analyzeBins {
		report.PrintBins(os.Stdout, groups, ac.MinSample, ac.TopN)
	}

	if analyzeNoCSV {
		return nil
	}
	op, bp := cfg.DataPath(artifact.SummaryOverall), cfg.DataPath(artifact.SummaryByTrophy)
	if err := report.WriteOverallCSV(op, overall); err != nil {
		return fmt.Errorf("write %s: %w", op, err)
	}
	if err := report.WriteBinCSV(bp, perBin); err != nil {
		return fmt.Errorf("write %s: %w", bp, err)
	}
	fmt.Fprintf(os.Stdout, "\nDone: wrote %s and %s\n", op, bp)
	return nil
}

func inputFromDB(ctx context.Context, since time.Time) ([]aggregator.BattleRow, []aggregator.CardRow, map[int64]string, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, nil, err
	}
	defer db.Close()

	battles, cards, err := db.AggregationInput(ctx, since)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read battles: %w", err)
	}
	names, err := db.CardNames(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read card names: %w", err)
	}
	return battles, cards, names, nil
}

func inputFromCSV(since time.Time) ([]aggregator.BattleRow, []aggregator.CardRow, map[int64]string, error) {
	battles, err := artifact.ReadBattles(cfg.DataPath(artifact.BattlesCSV))
	if err != nil {
		return nil, nil, nil, err
	}
	cards, err := artifact.ReadBattleCards(cfg.DataPath(artifact.BattleCardsCSV))
	if err != nil {
		return nil, nil, nil, err
	}
	names, err := artifact.CardNames(cfg.DataPath(artifact.CardsCSV))
	if err != nil {
		return nil, nil, nil, err
	}
	if !since.IsZero() {
		kept := battles[:0]
		for _, b := range battles {
			if b.BattleTime != nil && !b.BattleTime.Before(since) {
				kept = append(kept, b)
			}
		}
		battles = kept
	}
	br, cr := aggregator.RowsFromBattles(battles, cards)
	return br, cr, names, nil
}
