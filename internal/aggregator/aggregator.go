// Package aggregator computes per-card usage and win rates from battle and
// battle-card rows, overall and per trophy bin.
package aggregator

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/pable/go-cr-metrics/internal/model"
)

// BattleRow is the per-row input for one battle id. Several rows may share
// an id when the same battle was loaded more than once.
type BattleRow struct {
	BattleID         string
	PlayerCrowns     *int
	OpponentCrowns   *int
	PlayerTrophies   *int
	OpponentTrophies *int
}

// CardRow is one card on one side of a battle.
type CardRow struct {
	BattleID string
	Side     model.Side
	CardID   int64
}

// BattleOutcome is one battle after collapsing its rows.
type BattleOutcome struct {
	BattleID string
	// Winner is SideUnknown when no row shows a crown difference.
	Winner model.Side
	// MeanTrophies is nil when no row carries a trophy count.
	MeanTrophies *float64
}

// CollapseBattles reduces rows to one outcome per battle id, in first-seen
// order. Any positive crown difference makes the player the winner, even
// if another row for the same id is negative.
func CollapseBattles(rows []BattleRow) []BattleOutcome {
	type acc struct {
		pos, neg  bool
		trophySum float64
		trophyN   int
	}
	var order []string
	byID := make(map[string]*acc)

	for _, r := range rows {
		a, ok := byID[r.BattleID]
		if !ok {
			a = &acc{}
			byID[r.BattleID] = a
			order = append(order, r.BattleID)
		}
		if r.PlayerCrowns != nil && r.OpponentCrowns != nil {
			switch diff := *r.PlayerCrowns - *r.OpponentCrowns; {
			case diff > 0:
				a.pos = true
			case diff < 0:
				a.neg = true
			}
		}
		if m, ok := rowMean(r.PlayerTrophies, r.OpponentTrophies); ok {
			a.trophySum += m
			a.trophyN++
		}
	}

	out := make([]BattleOutcome, 0, len(order))
	for _, id := range order {
		a := byID[id]
		o := BattleOutcome{BattleID: id}
		switch {
		case a.pos:
			o.Winner = model.SidePlayer
		case a.neg:
			o.Winner = model.SideOpponent
		}
		if a.trophyN > 0 {
			m := a.trophySum / float64(a.trophyN)
			o.MeanTrophies = &m
		}
		out = append(out, o)
	}
	return out
}

func rowMean(vals ...*int) (float64, bool) {
	var sum float64
	n := 0
	for _, v := range vals {
		if v != nil {
			sum += float64(*v)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// CardStat is the usage and win record of one card over a set of battles.
type CardStat struct {
	CardID int64
	Name   string
	// Appearances counts distinct battles with the card on either side.
	Appearances int
	// Decided counts the appearances in battles with a known winner.
	Decided int
	// Wins counts distinct battles where the card was on the winning side.
	Wins      int
	UsageRate float64
	// WinRate is Wins/Decided, nil when Decided is zero.
	WinRate *float64
}

type tally struct {
	battles map[string]bool
	decided map[string]bool
	wins    map[string]bool
}

func newTally() *tally {
	return &tally{battles: map[string]bool{}, decided: map[string]bool{}, wins: map[string]bool{}}
}

func (t *tally) add(c CardRow, o BattleOutcome) {
	t.battles[c.BattleID] = true
	if o.Winner != model.SideUnknown {
		t.decided[c.BattleID] = true
		if c.Side == o.Winner {
			t.wins[c.BattleID] = true
		}
	}
}

func (t *tally) stat(id int64, names map[int64]string, total int) CardStat {
	s := CardStat{
		CardID:      id,
		Name:        cardName(id, names),
		Appearances: len(t.battles),
		Decided:     len(t.decided),
		Wins:        len(t.wins),
	}
	if total > 0 {
		s.UsageRate = float64(s.Appearances) / float64(total)
	}
	if s.Decided > 0 {
		wr := float64(s.Wins) / float64(s.Decided)
		s.WinRate = &wr
	}
	return s
}

func cardName(id int64, names map[int64]string) string {
	if n := names[id]; n != "" {
		return n
	}
	return strconv.FormatInt(id, 10)
}

// Overall returns one CardStat per card over all battles, ordered by
// appearances desc then card id. Card rows of unknown battles are ignored.
func Overall(battles []BattleOutcome, cards []CardRow, names map[int64]string) []CardStat {
	byID := make(map[string]BattleOutcome, len(battles))
	for _, b := range battles {
		byID[b.BattleID] = b
	}

	tallies := make(map[int64]*tally)
	for _, c := range cards {
		o, ok := byID[c.BattleID]
		if !ok {
			continue
		}
		t, ok := tallies[c.CardID]
		if !ok {
			t = newTally()
			tallies[c.CardID] = t
		}
		t.add(c, o)
	}

	out := make([]CardStat, 0, len(tallies))
	for id, t := range tallies {
		out = append(out, t.stat(id, names, len(byID)))
	}
	sortByAppearances(out)
	return out
}

func sortByAppearances(stats []CardStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Appearances != stats[j].Appearances {
			return stats[i].Appearances > stats[j].Appearances
		}
		return stats[i].CardID < stats[j].CardID
	})
}

// Bins partitions trophy levels into half-open buckets of Width starting at Min.
type Bins struct {
	Min   int
	Max   int
	Width int
}

// Validate rejects a non-positive width or an empty range.
func (b Bins) Validate() error {
	if b.Width <= 0 {
		return fmt.Errorf("bin width must be positive, got %d", b.Width)
	}
	if b.Max <= b.Min {
		return fmt.Errorf("max trophy %d must exceed min trophy %d", b.Max, b.Min)
	}
	return nil
}

// Count is the number of buckets needed to cover [Min, Max).
func (b Bins) Count() int {
	if b.Width <= 0 || b.Max <= b.Min {
		return 0
	}
	return int(math.Ceil(float64(b.Max-b.Min) / float64(b.Width)))
}

// Index returns the bucket holding v, or false when v falls outside every bucket.
func (b Bins) Index(v float64) (int, bool) {
	if b.Width <= 0 || v < float64(b.Min) || math.IsNaN(v) {
		return 0, false
	}
	k := int(math.Floor((v - float64(b.Min)) / float64(b.Width)))
	if k >= b.Count() {
		return 0, false
	}
	return k, true
}

// Label renders bucket k as "lo-hi" with hi inclusive.
func (b Bins) Label(k int) string {
	lo := b.Min + k*b.Width
	return fmt.Sprintf("%d-%d", lo, lo+b.Width-1)
}

// BinCardStat is a CardStat restricted to the battles of one trophy bin.
type BinCardStat struct {
	Bin        int
	Label      string
	BinBattles int
	CardStat
}

// ByTrophyBin computes CardStats per trophy bin. Denominators are the
// battles of that bin. Battles without a trophy level, or outside the
// range, are left out. Ordered by bin, usage desc, card id.
func ByTrophyBin(battles []BattleOutcome, cards []CardRow, names map[int64]string, bins Bins) []BinCardStat {
	type binned struct {
		BattleOutcome
		bin int
	}
	byID := make(map[string]binned, len(battles))
	perBin := make(map[int]int)
	for _, b := range battles {
		if b.MeanTrophies == nil {
			continue
		}
		k, ok := bins.Index(*b.MeanTrophies)
		if !ok {
			continue
		}
		byID[b.BattleID] = binned{b, k}
		perBin[k]++
	}

	type key struct {
		bin  int
		card int64
	}
	tallies := make(map[key]*tally)
	for _, c := range cards {
		b, ok := byID[c.BattleID]
		if !ok {
			continue
		}
		k := key{b.bin, c.CardID}
		t, ok := tallies[k]
		if !ok {
			t = newTally()
			tallies[k] = t
		}
		t.add(c, b.BattleOutcome)
	}

	out := make([]BinCardStat, 0, len(tallies))
	for k, t := range tallies {
		out = append(out, BinCardStat{
			Bin:        k.bin,
			Label:      bins.Label(k.bin),
			BinBattles: perBin[k.bin],
			CardStat:   t.stat(k.card, names, perBin[k.bin]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Bin != b.Bin {
			return a.Bin < b.Bin
		}
		if a.UsageRate != b.UsageRate {
			return a.UsageRate > b.UsageRate
		}
		return a.CardID < b.CardID
	})
	return out
}

// BinGroup is the stats of one trophy bin.
type BinGroup struct {
	Bin     int
	Label   string
	Battles int
	Cards   []CardStat
}

// GroupByBin splits ByTrophyBin output into one group per bin, keeping order.
func GroupByBin(stats []BinCardStat) []BinGroup {
	var out []BinGroup
	for _, s := range stats {
		if len(out) == 0 || out[len(out)-1].Bin != s.Bin {
			out = append(out, BinGroup{Bin: s.Bin, Label: s.Label, Battles: s.BinBattles})
		}
		g := &out[len(out)-1]
		g.Cards = append(g.Cards, s.CardStat)
	}
	return out
}

// TopUsed returns the n most used cards.
func TopUsed(stats []CardStat, n int) []CardStat {
	out := append([]CardStat(nil), stats...)
	sortByAppearances(out)
	return head(out, n)
}

// TopWinRate returns the n cards with the highest win rate among those with
// at least minSample appearances.
func TopWinRate(stats []CardStat, minSample, n int) []CardStat {
	var out []CardStat
	for _, s := range stats {
		if s.WinRate != nil && s.Appearances >= minSample {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if *a.WinRate != *b.WinRate {
			return *a.WinRate > *b.WinRate
		}
		if a.Appearances != b.Appearances {
			return a.Appearances > b.Appearances
		}
		return a.CardID < b.CardID
	})
	return head(out, n)
}

// BinMinSample is the looser sample threshold applied within one bin.
func BinMinSample(minSample int) int {
	return max(10, minSample/2)
}

func head(stats []CardStat, n int) []CardStat {
	if n >= 0 && n < len(stats) {
		return stats[:n]
	}
	return stats
}

// RowsFromBattles maps loaded battles to aggregation input.
func RowsFromBattles(battles []model.Battle, cards []model.BattleCard) ([]BattleRow, []CardRow) {
	br := make([]BattleRow, 0, len(battles))
	for _, b := range battles {
		br = append(br, BattleRow{
			BattleID:         b.BattleID,
			PlayerCrowns:     b.PlayerCrowns,
			OpponentCrowns:   b.OpponentCrowns,
			PlayerTrophies:   b.PlayerTrophies,
			OpponentTrophies: b.OpponentTrophies,
		})
	}
	cr := make([]CardRow, 0, len(cards))
	for _, c := range cards {
		cr = append(cr, CardRow{BattleID: c.BattleID, Side: c.Side, CardID: c.CardID})
	}
	return br, cr
}
