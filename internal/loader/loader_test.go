package loader

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
	"github.com/pable/go-cr-metrics/internal/storage"
)

// countingStore records batch sizes and pretends every row is new.
type countingStore struct {
	battleBatches []int
	cardBatches   []int
}

func (s *countingStore) InsertBattles(_ context.Context, b []model.Battle) (int, error) {
	s.battleBatches = append(s.battleBatches, len(b))
	return len(b), nil
}

func (s *countingStore) InsertBattleCards(_ context.Context, c []model.BattleCard) (int, error) {
	s.cardBatches = append(s.cardBatches, len(c))
	return len(c), nil
}

func makeBattles(n int) ([]model.Battle, []model.BattleCard) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var battles []model.Battle
	var cards []model.BattleCard
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		id := normalize.BattleID("#P", normalize.ISOTime(&at), "Ladder", "#O")
		battles = append(battles, model.Battle{
			BattleID: id, PlayerTag: "#P", OpponentTag: "#O", BattleTime: &at, Mode: "Ladder",
			PlayerCrowns: model.IntPtr(1), OpponentCrowns: model.IntPtr(0),
		})
		cards = append(cards,
			model.BattleCard{BattleID: id, Side: model.SidePlayer, CardID: 26000000},
			model.BattleCard{BattleID: id, Side: model.SideOpponent, CardID: 26000001},
		)
	}
	return battles, cards
}

func TestLoadBattles_Batching(t *testing.T) {
	store := &countingStore{}
	l := &Loader{Store: store, BatchSize: 4, Log: zerolog.Nop()}
	battles, _ := makeBattles(10)

	st, err := l.LoadBattles(context.Background(), battles)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{4, 4, 2}
	if len(store.battleBatches) != len(want) {
		t.Fatalf("batches: want %v, got %v", want, store.battleBatches)
	}
	for i := range want {
		if store.battleBatches[i] != want[i] {
			t.Errorf("batch %d: want %d, got %d", i, want[i], store.battleBatches[i])
		}
	}
	if st.Read != 10 || st.Inserted != 10 {
		t.Errorf("stats: %s", st)
	}
}

func TestLoadBattles_RejectsMissingTime(t *testing.T) {
	store := &countingStore{}
	l := &Loader{Store: store, BatchSize: 10, Log: zerolog.Nop()}
	battles, _ := makeBattles(3)
	battles[1].BattleTime = nil

	st, err := l.LoadBattles(context.Background(), battles)
	if err != nil {
		t.Fatal(err)
	}
	if st.Rejected != 1 || st.Inserted != 2 {
		t.Errorf("stats: %s", st)
	}
}

func TestLoad_TwiceIsNoop(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	l := &Loader{Store: db, BatchSize: 3, Log: zerolog.Nop()}
	battles, cards := makeBattles(7)

	first, err := l.LoadBattles(ctx, battles)
	if err != nil {
		t.Fatal(err)
	}
	firstCards, err := l.LoadBattleCards(ctx, cards)
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 7 || firstCards.Inserted != 14 {
		t.Errorf("first load: %s / %s", first, firstCards)
	}
	before, _ := db.Counts(ctx)

	second, err := l.LoadBattles(ctx, battles)
	if err != nil {
		t.Fatal(err)
	}
	secondCards, err := l.LoadBattleCards(ctx, cards)
	if err != nil {
		t.Fatal(err)
	}
	if second.Inserted != 0 || second.Skipped != 7 || secondCards.Inserted != 0 {
		t.Errorf("second load must insert nothing: %s / %s", second, secondCards)
	}
	after, _ := db.Counts(ctx)
	if before.Battles != after.Battles || before.BattleCards != after.BattleCards {
		t.Errorf("counts changed: %+v -> %+v", before, after)
	}
}

func TestLoadBattleCards_OrphansSkipped(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	_, cards := makeBattles(2)
	cards = append(cards, model.BattleCard{BattleID: cards[0].BattleID, CardID: 1})
	st, err := New(db, zerolog.Nop()).LoadBattleCards(context.Background(), cards)
	if err != nil {
		t.Fatal(err)
	}
	if st.Inserted != 0 || st.Skipped != 4 || st.Rejected != 1 {
		t.Errorf("stats: %s", st)
	}
}
