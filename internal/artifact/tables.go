package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
)

// Column sets, in file order.
var (
	PlayerColumns = []string{"tag", "name", "trophies", "clan_tag", "clan_name"}
	CardColumns   = []string{"id", "name", "max_level", "elixir", "rarity", "icon_url", "is_champion", "is_evolution"}
	BattleColumns = []string{
		"battle_id", "player_tag", "opponent_tag", "battle_time", "mode", "arena",
		"player_crowns", "opponent_crowns", "is_ladder_tournament", "battle_type", "won",
		"player_trophies", "opponent_trophies",
	}
	BattleCardColumns = []string{"battle_id", "side", "card_id", "card_level", "evolution_level"}
)

// Required columns per input table.
var (
	requiredPlayers     = []string{"tag"}
	requiredCards       = []string{"id", "name"}
	requiredBattles     = []string{"battle_id", "player_tag", "battle_time", "player_crowns", "opponent_crowns"}
	requiredBattleCards = []string{"battle_id", "side", "card_id"}
)

// table is a CSV reader that has validated its header.
type table struct {
	path string
	r    *csv.Reader
	cols map[string]int
	rec  []string
}

func openTable(f *os.File, path string, required []string) (*table, error) {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{File: path, Missing: required}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{File: path, Missing: missing}
	}
	return &table{path: path, r: r, cols: cols}, nil
}

func (t *table) next() (bool, error) {
	rec, err := t.r.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", t.path, err)
	}
	t.rec = rec
	return true, nil
}

func (t *table) line() int {
	l, _ := t.r.FieldPos(0)
	return l
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(t.rec) {
		return ""
	}
	return strings.TrimSpace(t.rec[i])
}

// optInt parses an optional integer; blank or malformed gives nil.
func (t *table) optInt(col string) *int {
	s := t.str(col)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, ".0"))
	if err != nil {
		return nil
	}
	return &n
}

func (t *table) reqInt64(col string) (int64, error) {
	s := t.str(col)
	n, err := strconv.ParseInt(strings.TrimSuffix(s, ".0"), 10, 64)
	if err != nil {
		return 0, &RowError{File: t.path, Line: t.line(), Column: col, Value: s}
	}
	return n, nil
}

func (t *table) optBool(col string) *bool {
	switch strings.ToLower(t.str(col)) {
	case "true", "t", "1", "yes", "y":
		return model.BoolPtr(true)
	case "false", "f", "0", "no", "n":
		return model.BoolPtr(false)
	default:
		return nil
	}
}

func (t *table) flag(col string) bool {
	b := t.optBool(col)
	return b != nil && *b
}

func fmtInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func fmtWon(p *bool) string {
	switch {
	case p == nil:
		return ""
	case *p:
		return "1"
	default:
		return "0"
	}
}

// writeTable writes header plus rows to path.
func writeTable(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := rows(w); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ---- players.csv ----

// WritePlayers writes the sampled roster.
func WritePlayers(path string, players []model.Player) error {
	return writeTable(path, PlayerColumns, func(w *csv.Writer) error {
		for _, p := range players {
			if err := w.Write([]string{p.Tag, p.Name, fmtInt(p.Trophies), p.ClanTag, p.ClanName}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadPlayers reads players.csv.
func ReadPlayers(path string) ([]model.Player, error) {
	f, err := open(path, "players")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := openTable(f, path, requiredPlayers)
	if err != nil {
		return nil, err
	}
	var out []model.Player
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if t.str("tag") == "" {
			continue
		}
		out = append(out, model.Player{
			Tag:      t.str("tag"),
			Name:     t.str("name"),
			Trophies: t.optInt("trophies"),
			ClanTag:  t.str("clan_tag"),
			ClanName: t.str("clan_name"),
		})
	}
}

// ---- cards.csv ----

// WriteCards writes the card dimension.
func WriteCards(path string, cards []model.Card) error {
	return writeTable(path, CardColumns, func(w *csv.Writer) error {
		for _, c := range cards {
			if err := w.Write([]string{
				strconv.FormatInt(c.ID, 10), c.Name, fmtInt(c.MaxLevel), fmtInt(c.ElixirCost),
				c.Rarity, c.IconURL, strconv.FormatBool(c.IsChampion), strconv.FormatBool(c.IsEvolution),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadCards reads cards.csv.
func ReadCards(path string) ([]model.Card, error) {
	f, err := open(path, "cards")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := openTable(f, path, requiredCards)
	if err != nil {
		return nil, err
	}
	var out []model.Card
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		id, err := t.reqInt64("id")
		if err != nil {
			return nil, err
		}
		out = append(out, model.Card{
			ID:          id,
			Name:        t.str("name"),
			MaxLevel:    t.optInt("max_level"),
			ElixirCost:  t.optInt("elixir"),
			Rarity:      t.str("rarity"),
			IconURL:     t.str("icon_url"),
			IsChampion:  t.flag("is_champion"),
			IsEvolution: t.flag("is_evolution"),
		})
	}
}

// CardNames reads cards.csv into an id to name lookup. A missing file
// gives an empty lookup.
func CardNames(path string) (map[int64]string, error) {
	cards, err := ReadCards(path)
	var mf *MissingFileError
	if errors.As(err, &mf) {
		return map[int64]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(cards))
	for _, c := range cards {
		out[c.ID] = c.Name
	}
	return out, nil
}

// ---- battles_raw.csv / battle_cards_raw.csv ----

// BattleWriter streams normalized battles into the two raw CSVs.
type BattleWriter struct {
	bf, cf   *os.File
	battles  *csv.Writer
	cards    *csv.Writer
	Battles  int
	CardRows int
}

// NewBattleWriter creates (truncating) the raw battle and card files.
func NewBattleWriter(battlesPath, cardsPath string) (*BattleWriter, error) {
	bf, err := create(battlesPath)
	if err != nil {
		return nil, err
	}
	cf, err := create(cardsPath)
	if err != nil {
		bf.Close()
		return nil, err
	}
	bw := &BattleWriter{bf: bf, cf: cf, battles: csv.NewWriter(bf), cards: csv.NewWriter(cf)}
	if err := bw.battles.Write(BattleColumns); err != nil {
		bw.Close()
		return nil, err
	}
	if err := bw.cards.Write(BattleCardColumns); err != nil {
		bw.Close()
		return nil, err
	}
	return bw, nil
}

// WriteBattle appends one battle and its card rows.
func (w *BattleWriter) WriteBattle(b model.Battle, cards []model.BattleCard) error {
	if err := w.battles.Write([]string{
		b.BattleID, b.PlayerTag, b.OpponentTag, normalize.ISOTime(b.BattleTime), b.Mode, b.Arena,
		fmtInt(b.PlayerCrowns), fmtInt(b.OpponentCrowns), strconv.FormatBool(b.IsLadderTournament),
		b.BattleType, fmtWon(b.Won), fmtInt(b.PlayerTrophies), fmtInt(b.OpponentTrophies),
	}); err != nil {
		return err
	}
	w.Battles++
	for _, c := range cards {
		if err := w.cards.Write([]string{
			c.BattleID, c.Side.String(), strconv.FormatInt(c.CardID, 10),
			fmtInt(c.CardLevel), fmtInt(c.EvolutionLevel),
		}); err != nil {
			return err
		}
		w.CardRows++
	}
	return nil
}

// Close flushes and closes both files.
func (w *BattleWriter) Close() error {
	w.battles.Flush()
	w.cards.Flush()
	errs := []error{w.battles.Error(), w.cards.Error(), w.bf.Close(), w.cf.Close()}
	return errors.Join(errs...)
}

// ReadBattles reads battles_raw.csv. Rows with an unparseable battle time
// keep a nil BattleTime.
func ReadBattles(path string) ([]model.Battle, error) {
	f, err := open(path, "battles")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := openTable(f, path, requiredBattles)
	if err != nil {
		return nil, err
	}
	var out []model.Battle
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		id := t.str("battle_id")
		if id == "" {
			return nil, &RowError{File: path, Line: t.line(), Column: "battle_id"}
		}
		out = append(out, model.Battle{
			BattleID:           id,
			PlayerTag:          t.str("player_tag"),
			OpponentTag:        t.str("opponent_tag"),
			BattleTime:         parseISO(t.str("battle_time")),
			Mode:               t.str("mode"),
			Arena:              t.str("arena"),
			PlayerCrowns:       t.optInt("player_crowns"),
			OpponentCrowns:     t.optInt("opponent_crowns"),
			PlayerTrophies:     t.optInt("player_trophies"),
			OpponentTrophies:   t.optInt("opponent_trophies"),
			IsLadderTournament: t.flag("is_ladder_tournament"),
			BattleType:         t.str("battle_type"),
			Won:                t.optBool("won"),
		})
	}
}

func parseISO(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00"} {
		if v, err := time.Parse(layout, s); err == nil {
			v = v.UTC()
			return &v
		}
	}
	return nil
}

// ReadBattleCards reads battle_cards_raw.csv.
func ReadBattleCards(path string) ([]model.BattleCard, error) {
	f, err := open(path, "battles")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := openTable(f, path, requiredBattleCards)
	if err != nil {
		return nil, err
	}
	var out []model.BattleCard
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		side := model.ParseSide(t.str("side"))
		if side == model.SideUnknown {
			return nil, &RowError{File: path, Line: t.line(), Column: "side", Value: t.str("side")}
		}
		cardID, err := t.reqInt64("card_id")
		if err != nil {
			return nil, err
		}
		out = append(out, model.BattleCard{
			BattleID:       t.str("battle_id"),
			Side:           side,
			CardID:         cardID,
			CardLevel:      t.optInt("card_level"),
			EvolutionLevel: t.optInt("evolution_level"),
		})
	}
}
