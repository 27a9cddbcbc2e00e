package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pable/go-cr-metrics/internal/aggregator"
	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/storage"
)

func rate(v float64) *float64 { return &v }

func sampleStats() []aggregator.CardStat {
	return []aggregator.CardStat{
		{CardID: 1, Name: "Knight", Appearances: 40, Decided: 38, Wins: 19, UsageRate: 0.4, WinRate: rate(0.5)},
		{CardID: 2, Name: "Hog Rider", Appearances: 30, Decided: 30, Wins: 21, UsageRate: 0.3, WinRate: rate(0.7)},
		{CardID: 3, Name: "Mirror", Appearances: 2, Decided: 2, Wins: 2, UsageRate: 0.02, WinRate: rate(1)},
		{CardID: 4, Name: "Heal", Appearances: 5, UsageRate: 0.05},
	}
}

// ---- table tests ----

func TestPrintMostUsed(t *testing.T) {
	var buf bytes.Buffer
	PrintMostUsed(&buf, "Most used", sampleStats(), 2)
	out := buf.String()
	if !strings.Contains(out, "Knight") || !strings.Contains(out, "Hog Rider") {
		t.Errorf("top two missing:\n%s", out)
	}
	if strings.Contains(out, "Mirror") {
		t.Errorf("topN not applied:\n%s", out)
	}
	if !strings.Contains(out, "40.0%") {
		t.Errorf("usage should render as a percentage:\n%s", out)
	}
}

func TestPrintBestWinRate(t *testing.T) {
	var buf bytes.Buffer
	PrintBestWinRate(&buf, "Highest win %", sampleStats(), 10, 5)
	out := buf.String()
	if strings.Contains(out, "Mirror") {
		t.Errorf("card below the sample threshold listed:\n%s", out)
	}
	if strings.Index(out, "Hog Rider") > strings.Index(out, "Knight") {
		t.Errorf("higher win rate should come first:\n%s", out)
	}

	buf.Reset()
	PrintBestWinRate(&buf, "Highest win %", sampleStats(), 1000, 5)
	if !strings.Contains(buf.String(), "no card meets") {
		t.Errorf("empty ranking should say so:\n%s", buf.String())
	}
}

func TestPrintBins(t *testing.T) {
	groups := []aggregator.BinGroup{
		{Bin: 0, Label: "5000-5499", Battles: 100, Cards: sampleStats()},
		{Bin: 1, Label: "5500-5999", Battles: 0},
	}
	var buf bytes.Buffer
	PrintBins(&buf, groups, 30, 3)
	out := buf.String()
	for _, want := range []string{"5000-5499", "5500-5999", "min 15 battles"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	PrintBinSummary(&buf, groups)
	if !strings.Contains(buf.String(), "—") {
		t.Errorf("empty bin should show a placeholder:\n%s", buf.String())
	}
}

func TestPrintOverview(t *testing.T) {
	oldest := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := storage.Counts{Cards: 110, Battles: 4, BattleCards: 64, Oldest: &oldest}
	modes := []storage.ModeCount{{Mode: "Ladder", Battles: 3}, {Mode: "", Battles: 1}}
	var buf bytes.Buffer
	PrintOverview(&buf, c, modes)
	out := buf.String()
	for _, want := range []string{"Battles: 4", "2024-01-01 00:00", "Ladder", "75.0%", "(none)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}
}

func TestPrintBattle(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 0, 0, time.UTC)
	b := model.Battle{
		BattleID: "0123456789abcdef0123456789abcdef", PlayerTag: "#P", OpponentTag: "#O",
		BattleTime: &at, Mode: "Ladder", PlayerCrowns: model.IntPtr(3), OpponentCrowns: model.IntPtr(1),
		PlayerTrophies: model.IntPtr(7100), Won: model.BoolPtr(true),
	}
	cards := []model.BattleCard{
		{BattleID: b.BattleID, Side: model.SidePlayer, CardID: 1, CardLevel: model.IntPtr(14)},
		{BattleID: b.BattleID, Side: model.SideOpponent, CardID: 99},
	}
	var buf bytes.Buffer
	PrintBattle(&buf, b, cards, map[int64]string{1: "Knight"})
	out := buf.String()
	for _, want := range []string{"3-1", "win", "Knight", "99", "opponent", "7100"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	draw := b
	draw.OpponentCrowns, draw.Won = model.IntPtr(3), nil
	noScore := b
	noScore.PlayerCrowns, noScore.Won = nil, nil
	PrintBattleList(&buf, []model.Battle{draw, noScore})
	out = buf.String()
	if !strings.Contains(out, "draw") || !strings.Contains(out, "0123456789ab") {
		t.Errorf("battle list:\n%s", out)
	}
	if strings.Contains(out, "0123456789abc") {
		t.Errorf("ids should be shortened:\n%s", out)
	}
}

// ---- csv tests ----

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestWriteOverallCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "overall.csv")
	if err := WriteOverallCSV(path, sampleStats()); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, path)
	if len(recs) != 5 {
		t.Fatalf("want header + 4 rows, got %d", len(recs))
	}
	if recs[0][0] != "card_id" || recs[1][1] != "Knight" || recs[1][6] != "0.500000" {
		t.Errorf("unexpected rows: %v", recs[:2])
	}
	if recs[4][6] != "" {
		t.Errorf("undecided card should have an empty win rate, got %q", recs[4][6])
	}
}

func TestWriteBinCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bins.csv")
	stats := []aggregator.BinCardStat{
		{Bin: 0, Label: "5000-5499", BinBattles: 100, CardStat: sampleStats()[0]},
	}
	if err := WriteBinCSV(path, stats); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, path)
	if len(recs) != 2 || recs[1][0] != "5000-5499" || recs[1][6] != "100" {
		t.Errorf("unexpected rows: %v", recs)
	}
}
