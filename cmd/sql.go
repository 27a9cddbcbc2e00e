package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/go-cr-metrics/internal/storage"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the metrics database",
	Long: `Run an arbitrary SQL query against the metrics database and print results as a table.

Schema overview:
  dim_cards(id, name, max_level, elixir, rarity, icon_url, is_champion, is_evolution)
  fact_battles(battle_id, player_tag, opponent_tag, battle_time, mode, arena,
    player_crowns, opponent_crowns, player_trophies, opponent_trophies,
    is_ladder_tournament, battle_type)
  battle_cards(battle_id, side, card_id, card_level, evolution_level)

side is 'player' or 'opponent'. battle_time is UTC; on SQLite it is stored as
ISO-8601 text, so compare against strings like '2024-01-31T00:00:00.000000Z'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return printQuery(cmd.Context(), db, query)
}

func printQuery(ctx context.Context, db *storage.DB, query string) error {
	cols, rows, err := db.QueryRaw(ctx, query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))

	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)

	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(os.Stdout, "\n(%d rows)\n", len(rows))
	return nil
}
