package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-cr-metrics/internal/aggregator"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/storage"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func pctPtr(v *float64) string {
	if v == nil {
		return "—"
	}
	return pct(*v)
}

// PrintMostUsed prints the most used cards, ranked by appearances.
func PrintMostUsed(w io.Writer, title string, stats []aggregator.CardStat, topN int) {
	fmt.Fprintf(w, "\n%s\n", title)
	table := newTable(w)
	table.Header("#", "CARD", "BATTLES", "USAGE", "WIN%")
	for i, s := range aggregator.TopUsed(stats, topN) {
		table.Append(
			strconv.Itoa(i+1),
			s.Name,
			strconv.Itoa(s.Appearances),
			pct(s.UsageRate),
			pctPtr(s.WinRate),
		)
	}
	table.Render()
}

// PrintBestWinRate prints the highest win-rate cards with at least minSample appearances.
func PrintBestWinRate(w io.Writer, title string, stats []aggregator.CardStat, minSample, topN int) {
	top := aggregator.TopWinRate(stats, minSample, topN)
	fmt.Fprintf(w, "\n%s (min %d battles)\n", title, minSample)
	if len(top) == 0 {
		fmt.Fprintln(w, "  (no card meets the sample threshold)")
		return
	}
	table := newTable(w)
	table.Header("#", "CARD", "WIN%", "WINS", "DECIDED", "BATTLES", "USAGE")
	for i, s := range top {
		table.Append(
			strconv.Itoa(i+1),
			s.Name,
			pctPtr(s.WinRate),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Decided),
			strconv.Itoa(s.Appearances),
			pct(s.UsageRate),
		)
	}
	table.Render()
}

// PrintBins prints the most used and best win-rate cards of every trophy bin.
func PrintBins(w io.Writer, groups []aggregator.BinGroup, minSample, topN int) {
	perBin := aggregator.BinMinSample(minSample)
	for _, g := range groups {
		fmt.Fprintf(w, "\n=== Trophy bin %s (%d battles) ===\n", g.Label, g.Battles)
		PrintMostUsed(w, "Most used", g.Cards, topN)
		PrintBestWinRate(w, "Highest win %", g.Cards, perBin, topN)
	}
}

// PrintBinSummary prints one row per bin with its battle count and top card.
func PrintBinSummary(w io.Writer, groups []aggregator.BinGroup) {
	table := newTable(w)
	table.Header("BIN", "BATTLES", "CARDS", "TOP CARD", "USAGE")
	for _, g := range groups {
		top, usage := "—", "—"
		if len(g.Cards) > 0 {
			top, usage = g.Cards[0].Name, pct(g.Cards[0].UsageRate)
		}
		table.Append(g.Label, strconv.Itoa(g.Battles), strconv.Itoa(len(g.Cards)), top, usage)
	}
	table.Render()
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// PrintOverview prints store totals and battle counts per game mode.
func PrintOverview(w io.Writer, c storage.Counts, modes []storage.ModeCount) {
	fmt.Fprintf(w, "\nCards: %d  |  Battles: %d  |  Card rows: %d  |  Range: %s → %s\n\n",
		c.Cards, c.Battles, c.BattleCards, fmtTime(c.Oldest), fmtTime(c.Newest))
	if len(modes) == 0 {
		return
	}
	table := newTable(w)
	table.Header("MODE", "BATTLES", "SHARE", "OLDEST", "NEWEST")
	for _, m := range modes {
		mode := m.Mode
		if mode == "" {
			mode = "(none)"
		}
		share := 0.0
		if c.Battles > 0 {
			share = float64(m.Battles) / float64(c.Battles)
		}
		table.Append(mode, strconv.FormatInt(m.Battles, 10), pct(share), fmtTime(m.Oldest), fmtTime(m.Newest))
	}
	table.Render()
}

func optInt(p *int) string {
	if p == nil {
		return "—"
	}
	return strconv.Itoa(*p)
}

func result(b model.Battle) string {
	switch {
	case b.PlayerCrowns == nil || b.OpponentCrowns == nil:
		return "—"
	case b.Won == nil:
		return "draw"
	case *b.Won:
		return "win"
	default:
		return "loss"
	}
}

func score(b model.Battle) string {
	return optInt(b.PlayerCrowns) + "-" + optInt(b.OpponentCrowns)
}

// PrintBattleList prints one line per battle from the reporting player's side.
func PrintBattleList(w io.Writer, battles []model.Battle) {
	table := newTable(w)
	table.Header("ID", "TIME", "PLAYER", "OPPONENT", "MODE", "SCORE", "RESULT", "TROPHIES")
	for _, b := range battles {
		table.Append(
			b.BattleID[:min(12, len(b.BattleID))],
			fmtTime(b.BattleTime),
			b.PlayerTag,
			b.OpponentTag,
			b.Mode,
			score(b),
			result(b),
			optInt(b.PlayerTrophies),
		)
	}
	table.Render()
}

// PrintBattle prints a battle header and both decks. Unknown card ids are
// shown as the id.
func PrintBattle(w io.Writer, b model.Battle, cards []model.BattleCard, names map[int64]string) {
	fmt.Fprintf(w, "\nBattle %s\n", b.BattleID)
	fmt.Fprintf(w, "  %s  |  %s  |  %s  |  %s\n", fmtTime(b.BattleTime), b.Mode, b.Arena, b.BattleType)
	fmt.Fprintf(w, "  %s (%s) vs %s (%s)  |  %s  |  %s\n\n",
		b.PlayerTag, optInt(b.PlayerTrophies), b.OpponentTag, optInt(b.OpponentTrophies),
		score(b), result(b))

	table := newTable(w)
	table.Header("SIDE", "CARD", "ID", "LEVEL", "EVO")
	for _, c := range cards {
		name := names[c.CardID]
		if name == "" {
			name = strconv.FormatInt(c.CardID, 10)
		}
		table.Append(c.Side.String(), name, strconv.FormatInt(c.CardID, 10), optInt(c.CardLevel), optInt(c.EvolutionLevel))
	}
	table.Render()
}

func fmtRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteOverallCSV writes the overall card summary.
func WriteOverallCSV(path string, stats []aggregator.CardStat) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		usage := s.UsageRate
		rows = append(rows, []string{
			strconv.FormatInt(s.CardID, 10),
			s.Name,
			strconv.Itoa(s.Appearances),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Decided),
			fmtRate(&usage),
			fmtRate(s.WinRate),
		})
	}
	return writeCSV(path,
		[]string{"card_id", "card_name", "appearances", "wins_with_card", "decided", "usage_rate", "win_rate"},
		rows)
}

// WriteBinCSV writes the per-trophy-bin card summary.
func WriteBinCSV(path string, stats []aggregator.BinCardStat) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		usage := s.UsageRate
		rows = append(rows, []string{
			s.Label,
			strconv.FormatInt(s.CardID, 10),
			s.Name,
			strconv.Itoa(s.Appearances),
			strconv.Itoa(s.Wins),
			strconv.Itoa(s.Decided),
			strconv.Itoa(s.BinBattles),
			fmtRate(&usage),
			fmtRate(s.WinRate),
		})
	}
	return writeCSV(path,
		[]string{"trophy_bin", "card_id", "card_name", "appearances", "wins_with_card", "decided", "total_battles_bin", "usage_rate", "win_rate"},
		rows)
}
