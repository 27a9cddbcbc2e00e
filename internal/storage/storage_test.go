package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
)

func openMemDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// battleAt builds a stored-shape battle with a real 32-char id.
func battleAt(player, opp string, at time.Time, pc, oc int) model.Battle {
	return model.Battle{
		BattleID:       normalize.BattleID(player, normalize.ISOTime(&at), "Ladder", opp),
		PlayerTag:      player,
		OpponentTag:    opp,
		BattleTime:     &at,
		Mode:           "Ladder",
		Arena:          "Arena 15",
		PlayerCrowns:   model.IntPtr(pc),
		OpponentCrowns: model.IntPtr(oc),
		PlayerTrophies: model.IntPtr(7000),
		BattleType:     "PvP",
	}
}

func cardsFor(b model.Battle, ids ...int64) []model.BattleCard {
	var out []model.BattleCard
	for _, id := range ids {
		out = append(out, model.BattleCard{BattleID: b.BattleID, Side: model.SidePlayer, CardID: id, CardLevel: model.IntPtr(14)})
	}
	return out
}

func TestDialectFor(t *testing.T) {
	cases := map[string]Dialect{
		"postgres://u:p@h/db":     Postgres,
		"POSTGRESQL://h/db":       Postgres,
		"/tmp/crmetrics.db":       SQLite,
		":memory:":                SQLite,
		"file:x.db?cache=shared":  SQLite,
		"host=localhost dbname=x": SQLite,
	}
	for dsn, want := range cases {
		if got := DialectFor(dsn); got != want {
			t.Errorf("DialectFor(%q): want %s, got %s", dsn, want, got)
		}
	}
}

func TestSqliteDSN(t *testing.T) {
	want := "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if got := sqliteDSN("/tmp/x.db"); got != "/tmp/x.db"+want {
		t.Errorf("plain path: %s", got)
	}
	if got := sqliteDSN("file:x.db?cache=shared"); !strings.HasPrefix(got, "file:x.db?cache=shared&_pragma=foreign_keys(1)&") {
		t.Errorf("existing query: %s", got)
	}
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fk.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	db.conn.SetMaxOpenConns(3)
	var conns []*sql.Conn
	for range 3 {
		c, err := db.conn.Conn(ctx)
		if err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)
	}
	for i, c := range conns {
		var on int
		if err := c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
			t.Fatal(err)
		}
		if on != 1 {
			t.Errorf("connection %d: foreign_keys off", i)
		}
		c.Close()
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: Postgres}
	if got := pg.rebind("SELECT ? WHERE a = ? AND b = ?"); got != "SELECT $1 WHERE a = $2 AND b = $3" {
		t.Errorf("postgres rebind: %s", got)
	}
	lite := &DB{dialect: SQLite}
	if got := lite.rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite must keep ?: %s", got)
	}
}

func TestUpsertCards(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	if _, err := db.UpsertCards(ctx, []model.Card{{ID: 26000000, Name: "Knight", ElixirCost: model.IntPtr(3)}}); err != nil {
		t.Fatalf("UpsertCards: %v", err)
	}
	if _, err := db.UpsertCards(ctx, []model.Card{{ID: 26000000, Name: "Knight v2", IsChampion: true}}); err != nil {
		t.Fatalf("UpsertCards again: %v", err)
	}

	names, err := db.CardNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[26000000] != "Knight v2" {
		t.Errorf("last pull should win: %v", names)
	}
}

func TestInsertIdempotency(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	b1 := battleAt("#A", "#B", now, 3, 1)
	b2 := battleAt("#A", "#C", now.Add(time.Minute), 0, 1)
	cards := append(cardsFor(b1, 1, 2), cardsFor(b2, 1)...)

	n, err := db.InsertBattles(ctx, []model.Battle{b1, b2})
	if err != nil || n != 2 {
		t.Fatalf("first insert: n=%d err=%v", n, err)
	}
	if n, err := db.InsertBattleCards(ctx, cards); err != nil || n != 3 {
		t.Fatalf("first card insert: n=%d err=%v", n, err)
	}

	// Same input again inserts nothing.
	if n, err := db.InsertBattles(ctx, []model.Battle{b1, b2}); err != nil || n != 0 {
		t.Errorf("second insert: n=%d err=%v", n, err)
	}
	if n, err := db.InsertBattleCards(ctx, cards); err != nil || n != 0 {
		t.Errorf("second card insert: n=%d err=%v", n, err)
	}

	c, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Battles != 2 || c.BattleCards != 3 {
		t.Errorf("counts after double load: %+v", c)
	}
	if c.Oldest == nil || !c.Oldest.Equal(now) {
		t.Errorf("oldest: %v", c.Oldest)
	}
}

func TestInsertBattleCards_SkipsUnknownBattle(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()

	orphan := model.BattleCard{BattleID: normalize.BattleID("#X", "", "", ""), Side: model.SideOpponent, CardID: 7}
	n, err := db.InsertBattleCards(ctx, []model.BattleCard{orphan})
	if err != nil {
		t.Fatalf("orphan card must be skipped, not fail: %v", err)
	}
	if n != 0 {
		t.Errorf("want 0 inserted, got %d", n)
	}
}

func TestInsertBattles_RequiresTime(t *testing.T) {
	db := openMemDB(t)
	b := battleAt("#A", "#B", time.Now(), 1, 0)
	b.BattleTime = nil
	if _, err := db.InsertBattles(context.Background(), []model.Battle{b}); err == nil {
		t.Error("expected an error for a battle without time")
	}
}

func TestBattleRoundTrip(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC)
	in := battleAt("#A", "#B", at, 2, 2)
	in.IsLadderTournament = true

	if _, err := db.InsertBattles(ctx, []model.Battle{in}); err != nil {
		t.Fatal(err)
	}
	got, err := db.Battle(ctx, in.BattleID)
	if err != nil || got == nil {
		t.Fatalf("Battle: %v %v", got, err)
	}
	if !got.BattleTime.Equal(at) {
		t.Errorf("time: want %v, got %v", at, got.BattleTime)
	}
	if got.OpponentTag != "#B" || *got.PlayerCrowns != 2 || !got.IsLadderTournament || got.OpponentTrophies != nil {
		t.Errorf("unexpected round trip: %+v", got)
	}

	missing, err := db.Battle(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing id: %v %v", missing, err)
	}
}

func TestListAndLookupBattles(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := battleAt("#A", "#X", base, 1, 0)
	b := battleAt("#A", "#Y", base.Add(time.Hour), 0, 1)
	c := battleAt("#B", "#Z", base.Add(2*time.Hour), 1, 1)
	if _, err := db.InsertBattles(ctx, []model.Battle{a, b, c}); err != nil {
		t.Fatal(err)
	}
	opp := model.BattleCard{BattleID: b.BattleID, Side: model.SideOpponent, CardID: 1, EvolutionLevel: model.IntPtr(1)}
	if _, err := db.InsertBattleCards(ctx, append(cardsFor(b, 5, 3), opp)); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListBattles(ctx, "", 10)
	if err != nil || len(all) != 3 || all[0].BattleID != c.BattleID {
		t.Fatalf("ListBattles newest first: %v %v", all, err)
	}
	mine, _ := db.ListBattles(ctx, "#A", 1)
	if len(mine) != 1 || mine[0].BattleID != b.BattleID {
		t.Errorf("player filter and limit: %+v", mine)
	}

	got, err := db.BattleByPrefix(ctx, b.BattleID[:8])
	if err != nil || got == nil || got.BattleID != b.BattleID {
		t.Fatalf("BattleByPrefix: %v %v", got, err)
	}
	if none, _ := db.BattleByPrefix(ctx, "zz"); none != nil {
		t.Errorf("non-hex prefix should not match: %+v", none)
	}

	cards, err := db.BattleCards(ctx, b.BattleID)
	if err != nil || len(cards) != 3 {
		t.Fatalf("BattleCards: %v %v", cards, err)
	}
	if cards[0].CardID != 3 || cards[2].Side != model.SideOpponent || *cards[2].EvolutionLevel != 1 {
		t.Errorf("player side first, by card id: %+v", cards)
	}
}

func TestDeleteBattlesBefore_Cascades(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var battles []model.Battle
	var cards []model.BattleCard
	for i := 0; i < 5; i++ {
		b := battleAt("#OLD", "#O", now.AddDate(0, 0, -100-i), 1, 0)
		battles = append(battles, b)
		cards = append(cards, cardsFor(b, 1, 2)...)
	}
	fresh := battleAt("#NEW", "#O", now.AddDate(0, 0, -1), 1, 0)
	battles = append(battles, fresh)
	cards = append(cards, cardsFor(fresh, 1)...)

	if _, err := db.InsertBattles(ctx, battles); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBattleCards(ctx, cards); err != nil {
		t.Fatal(err)
	}

	cutoff := now.AddDate(0, 0, -90)
	n, err := db.DeleteBattlesBefore(ctx, cutoff, 3)
	if err != nil || n != 3 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	n, err = db.DeleteBattlesBefore(ctx, cutoff, 3)
	if err != nil || n != 2 {
		t.Fatalf("second batch: n=%d err=%v", n, err)
	}
	if n, _ := db.DeleteBattlesBefore(ctx, cutoff, 3); n != 0 {
		t.Errorf("nothing left to delete, got %d", n)
	}
	if err := db.Reclaim(ctx); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}

	c, _ := db.Counts(ctx)
	if c.Battles != 1 || c.BattleCards != 1 {
		t.Errorf("cascade did not remove card rows: %+v", c)
	}
}

func TestAggregationInputAndOverview(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	old := battleAt("#A", "#B", now.AddDate(0, 0, -10), 1, 0)
	recent := battleAt("#A", "#C", now, 0, 2)
	recent.Mode = "Challenge"
	recent.BattleID = normalize.BattleID("#A", normalize.ISOTime(&now), "Challenge", "#C")
	db.InsertBattles(ctx, []model.Battle{old, recent})
	db.InsertBattleCards(ctx, append(cardsFor(old, 1), cardsFor(recent, 1, 2)...))

	battles, cards, err := db.AggregationInput(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(battles) != 2 || len(cards) != 3 {
		t.Errorf("full input: %d battles, %d cards", len(battles), len(cards))
	}
	if cards[0].Side != model.SidePlayer {
		t.Errorf("side not parsed: %v", cards[0].Side)
	}

	battles, cards, err = db.AggregationInput(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatal(err)
	}
	if len(battles) != 1 || len(cards) != 2 {
		t.Errorf("since filter: %d battles, %d cards", len(battles), len(cards))
	}

	modes, err := db.Overview(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(modes) != 2 || modes[0].Battles != 1 {
		t.Errorf("overview: %+v", modes)
	}
}

func TestQueryRawAndDrop(t *testing.T) {
	db := openMemDB(t)
	ctx := context.Background()
	db.UpsertCards(ctx, []model.Card{{ID: 1, Name: "Knight"}})

	cols, rows, err := db.QueryRaw(ctx, "SELECT id, name, max_level FROM dim_cards")
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 3 || len(rows) != 1 || rows[0][1] != "Knight" || rows[0][2] != "NULL" {
		t.Errorf("QueryRaw: %v %v", cols, rows)
	}

	if err := db.DropAll(ctx); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if _, _, err := db.QueryRaw(ctx, "SELECT * FROM dim_cards"); err == nil {
		t.Error("dim_cards should be gone")
	}
}
