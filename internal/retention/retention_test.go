package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pable/go-cr-metrics/internal/model"
	"github.com/pable/go-cr-metrics/internal/normalize"
	"github.com/pable/go-cr-metrics/internal/storage"
)

var fixedNow = time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, db *storage.DB, ages ...int) {
	t.Helper()
	var battles []model.Battle
	var cards []model.BattleCard
	for i, days := range ages {
		at := fixedNow.AddDate(0, 0, -days).Add(time.Duration(i) * time.Second)
		id := normalize.BattleID("#P", normalize.ISOTime(&at), "Ladder", "#O")
		battles = append(battles, model.Battle{BattleID: id, PlayerTag: "#P", OpponentTag: "#O", BattleTime: &at})
		cards = append(cards, model.BattleCard{BattleID: id, Side: model.SidePlayer, CardID: 1})
	}
	ctx := context.Background()
	if _, err := db.InsertBattles(ctx, battles); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertBattleCards(ctx, cards); err != nil {
		t.Fatal(err)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	seed(t, db, 120, 100, 95, 91, 89, 10, 0)

	s := &Sweeper{
		Store:     db,
		Horizon:   DefaultHorizon,
		BatchSize: 2,
		Now:       func() time.Time { return fixedNow },
		Log:       zerolog.Nop(),
	}
	ctx := context.Background()

	first, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Deleted != 4 || first.Batches != 2 {
		t.Errorf("first sweep: %+v", first)
	}
	afterFirst, _ := db.Counts(ctx)

	second, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Deleted != 0 {
		t.Errorf("second sweep deleted %d rows", second.Deleted)
	}
	afterSecond, _ := db.Counts(ctx)
	if afterFirst.Battles != 3 || afterSecond.Battles != 3 || afterSecond.BattleCards != 3 {
		t.Errorf("counts: first=%+v second=%+v", afterFirst, afterSecond)
	}
}

type failingStore struct{ reclaimed bool }

func (f *failingStore) DeleteBattlesBefore(context.Context, time.Time, int) (int, error) {
	return 0, errors.New("locked")
}

func (f *failingStore) Reclaim(context.Context) error {
	f.reclaimed = true
	return nil
}

func TestSweep_DeleteErrorSkipsReclaim(t *testing.T) {
	fs := &failingStore{}
	s := New(fs, zerolog.Nop())
	if _, err := s.Sweep(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fs.reclaimed {
		t.Error("reclaim must not run after a failed delete")
	}
}
