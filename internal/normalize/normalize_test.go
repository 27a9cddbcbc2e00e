package normalize

import (
	"regexp"
	"testing"
	"time"

	"github.com/pable/go-cr-metrics/internal/clashroyale"
	"github.com/pable/go-cr-metrics/internal/model"
)

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func id64(v int64) *int64 { return &v }

func TestBattleID_Deterministic(t *testing.T) {
	a := BattleID("#ABC", "2024-01-01T00:00:00+00:00", "Ladder", "#XYZ")
	b := BattleID("#ABC", "2024-01-01T00:00:00+00:00", "Ladder", "#XYZ")
	if a != b {
		t.Errorf("same inputs hashed differently: %s vs %s", a, b)
	}
	if !hex32.MatchString(a) {
		t.Errorf("expected 32 lowercase hex chars, got %q", a)
	}
}

func TestBattleID_PerspectiveMatters(t *testing.T) {
	mine := BattleID("#ABC", "2024-01-01T00:00:00+00:00", "Ladder", "#XYZ")
	theirs := BattleID("#XYZ", "2024-01-01T00:00:00+00:00", "Ladder", "#ABC")
	if mine == theirs {
		t.Error("swapped perspectives must produce distinct ids")
	}
	if BattleID("#ABC", "", "", "") == BattleID("#ABC", "", "", "#XYZ") {
		t.Error("opponent tag must affect the id")
	}
}

func TestParseBattleTime(t *testing.T) {
	cases := []struct {
		in   string
		want string // ISOTime rendering, "" for nil
	}{
		{"20240101T120000.000Z", "2024-01-01T12:00:00+00:00"},
		{"20240101T120000Z", "2024-01-01T12:00:00+00:00"},
		{"20240101T120000.123456Z", "2024-01-01T12:00:00.123456+00:00"},
		{"20240101T120000.5Z", "2024-01-01T12:00:00.500000+00:00"},
		{"2024-01-01 12:00", ""},
		{"", ""},
		{"garbage", ""},
	}
	for _, tc := range cases {
		got := ISOTime(ParseBattleTime(tc.in))
		if got != tc.want {
			t.Errorf("ParseBattleTime(%q): want %q, got %q", tc.in, tc.want, got)
		}
	}

	bt := ParseBattleTime("20240101T120000Z")
	if bt.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", bt.Location())
	}
}

func TestOutcome(t *testing.T) {
	three, one := 3, 1
	if w := Outcome(&three, &one); w == nil || !*w {
		t.Error("3-1 should be a win")
	}
	if w := Outcome(&one, &three); w == nil || *w {
		t.Error("1-3 should be a loss")
	}
	if w := Outcome(&one, &one); w != nil {
		t.Error("tie should be undetermined")
	}
	if w := Outcome(nil, &one); w != nil {
		t.Error("missing crowns should be undetermined")
	}
}

func sampleBattle() clashroyale.Battle {
	return clashroyale.Battle{
		Type:       "PvP",
		BattleTime: "20240101T000000.000Z",
		GameMode:   &clashroyale.Named{Name: "Ladder"},
		Arena:      &clashroyale.Named{Name: "Legendary Arena"},
		Team: []clashroyale.Participant{{
			Tag: "#ABC", Crowns: model.IntPtr(2), StartingTrophies: model.IntPtr(7000),
			Cards: []clashroyale.CardRef{
				{ID: id64(26000000), Level: model.IntPtr(14)},
				{ID: nil, Name: "mystery"},
				{ID: id64(26000001), Level: model.IntPtr(13), EvolutionLevel: model.IntPtr(1)},
			},
		}},
		Opponent: []clashroyale.Participant{{
			Tag: "#XYZ", Crowns: model.IntPtr(1), StartingTrophies: model.IntPtr(7100),
			Cards: []clashroyale.CardRef{
				{ID: id64(26000000), Level: model.IntPtr(14)},
				{ID: id64(26000000), Level: model.IntPtr(14)},
			},
		}},
	}
}

func TestBattle_FactAndCards(t *testing.T) {
	b, cards := Battle(sampleBattle())

	wantID := BattleID("#ABC", "2024-01-01T00:00:00+00:00", "Ladder", "#XYZ")
	if b.BattleID != wantID {
		t.Errorf("BattleID: want %s, got %s", wantID, b.BattleID)
	}
	if b.PlayerTag != "#ABC" || b.OpponentTag != "#XYZ" || b.Mode != "Ladder" || b.Arena != "Legendary Arena" {
		t.Errorf("unexpected fact row: %+v", b)
	}
	if b.Won == nil || !*b.Won {
		t.Error("expected Won=true for 2-1")
	}
	if *b.PlayerTrophies != 7000 || *b.OpponentTrophies != 7100 {
		t.Errorf("trophies: %v %v", *b.PlayerTrophies, *b.OpponentTrophies)
	}

	// 2 player cards (one skipped for missing id) + 1 opponent card (duplicate collapsed).
	if len(cards) != 3 {
		t.Fatalf("want 3 card rows, got %d: %+v", len(cards), cards)
	}
	var player, opponent int
	for _, c := range cards {
		if c.BattleID != b.BattleID {
			t.Errorf("card row carries wrong battle id %s", c.BattleID)
		}
		switch c.Side {
		case model.SidePlayer:
			player++
		case model.SideOpponent:
			opponent++
		}
	}
	if player != 2 || opponent != 1 {
		t.Errorf("sides: player=%d opponent=%d", player, opponent)
	}
}

func TestBattle_MissingPartiesAndTime(t *testing.T) {
	b, cards := Battle(clashroyale.Battle{BattleTime: "not-a-time"})
	if b.BattleTime != nil {
		t.Error("unparseable time must yield nil")
	}
	if b.Won != nil {
		t.Error("missing crowns must yield undetermined outcome")
	}
	if len(cards) != 0 {
		t.Errorf("expected no card rows, got %d", len(cards))
	}
	if b.BattleID != BattleID("", "", "", "") {
		t.Error("missing fields should hash as empty strings")
	}
}

func TestCard(t *testing.T) {
	c, ok := Card(clashroyale.CardItem{
		ID: id64(26000010), Name: "Archer Queen", Rarity: "Champion",
		Elixir:   model.IntPtr(5),
		IconURLs: map[string]string{"large": "http://l"},
	})
	if !ok {
		t.Fatal("expected ok")
	}
	if !c.IsChampion {
		t.Error("rarity Champion implies IsChampion")
	}
	if c.ElixirCost == nil || *c.ElixirCost != 5 {
		t.Error("elixir should fall back to the legacy field")
	}
	if c.IconURL != "http://l" {
		t.Errorf("icon fallback: got %q", c.IconURL)
	}

	if _, ok := Card(clashroyale.CardItem{Name: "no id"}); ok {
		t.Error("card without id must be rejected")
	}
}
