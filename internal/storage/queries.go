package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pable/go-cr-metrics/internal/model"
)

// UpsertCards inserts or refreshes card dimension rows in one transaction.
func (db *DB) UpsertCards(ctx context.Context, cards []model.Card) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
		INSERT INTO dim_cards(id, name, max_level, elixir, rarity, icon_url, is_champion, is_evolution)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			max_level = excluded.max_level,
			elixir = excluded.elixir,
			rarity = excluded.rarity,
			icon_url = excluded.icon_url,
			is_champion = excluded.is_champion,
			is_evolution = excluded.is_evolution`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range cards {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Name, nullInt(c.MaxLevel), nullInt(c.ElixirCost),
			c.Rarity, c.IconURL, c.IsChampion, c.IsEvolution,
		); err != nil {
			return 0, fmt.Errorf("upsert card %d: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(cards), nil
}

// CardNames returns the card id to name lookup.
func (db *DB) CardNames(ctx context.Context) (map[int64]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name FROM dim_cards`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name.String
	}
	return out, rows.Err()
}

// InsertBattles inserts fact rows in one transaction, skipping ids already
// stored. It returns the number of rows actually inserted.
func (db *DB) InsertBattles(ctx context.Context, battles []model.Battle) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
		INSERT INTO fact_battles(
			battle_id, player_tag, opponent_tag, battle_time, mode, arena,
			player_crowns, opponent_crowns, player_trophies, opponent_trophies,
			is_ladder_tournament, battle_type
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (battle_id) DO NOTHING`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range battles {
		if b.BattleTime == nil {
			return 0, fmt.Errorf("battle %s has no battle time", b.BattleID)
		}
		res, err := stmt.ExecContext(ctx,
			b.BattleID, b.PlayerTag, b.OpponentTag, formatTime(*b.BattleTime), b.Mode, b.Arena,
			nullInt(b.PlayerCrowns), nullInt(b.OpponentCrowns),
			nullInt(b.PlayerTrophies), nullInt(b.OpponentTrophies),
			b.IsLadderTournament, b.BattleType,
		)
		if err != nil {
			return 0, fmt.Errorf("insert battle %s: %w", b.BattleID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// InsertBattleCards inserts card rows in one transaction. Rows already
// stored, and rows whose battle is not stored, are skipped.
func (db *DB) InsertBattleCards(ctx context.Context, cards []model.BattleCard) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, db.rebind(`
		INSERT INTO battle_cards(battle_id, side, card_id, card_level, evolution_level)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT), CAST(? AS INTEGER), CAST(? AS INTEGER)
		WHERE EXISTS (SELECT 1 FROM fact_battles WHERE battle_id = CAST(? AS TEXT))
		ON CONFLICT (battle_id, side, card_id) DO NOTHING`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, c := range cards {
		res, err := stmt.ExecContext(ctx,
			c.BattleID, c.Side.String(), c.CardID,
			nullInt(c.CardLevel), nullInt(c.EvolutionLevel),
			c.BattleID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert card %d for battle %s: %w", c.CardID, c.BattleID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteBattlesBefore deletes at most limit battles older than cutoff and
// returns how many went. Their card rows go with them.
func (db *DB) DeleteBattlesBefore(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		DELETE FROM fact_battles
		WHERE battle_id IN (
			SELECT battle_id FROM fact_battles
			WHERE battle_time < ?
			LIMIT ?
		)`), formatTime(cutoff), limit)
	if err != nil {
		return 0, fmt.Errorf("delete battles before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Reclaim returns freed pages to the OS and refreshes planner statistics.
func (db *DB) Reclaim(ctx context.Context) error {
	stmts := []string{"VACUUM"}
	if db.dialect == Postgres {
		stmts = []string{"VACUUM ANALYZE fact_battles", "VACUUM ANALYZE battle_cards"}
	}
	for _, s := range stmts {
		if _, err := db.conn.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
	return nil
}

// Counts summarises table sizes and the stored time range.
type Counts struct {
	Cards       int64
	Battles     int64
	BattleCards int64
	Oldest      *time.Time
	Newest      *time.Time
}

// Counts returns current row counts.
func (db *DB) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		sql string
		dst *int64
	}{
		{`SELECT COUNT(*) FROM dim_cards`, &c.Cards},
		{`SELECT COUNT(*) FROM fact_battles`, &c.Battles},
		{`SELECT COUNT(*) FROM battle_cards`, &c.BattleCards},
	} {
		if err := db.conn.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return c, err
		}
	}
	var oldest, newest dbTime
	if err := db.conn.QueryRowContext(ctx,
		`SELECT MIN(battle_time), MAX(battle_time) FROM fact_battles`).Scan(&oldest, &newest); err != nil {
		return c, err
	}
	c.Oldest, c.Newest = oldest.ptr(), newest.ptr()
	return c, nil
}

const battleColumns = `battle_id, player_tag, opponent_tag, battle_time, mode, arena,
	player_crowns, opponent_crowns, player_trophies, opponent_trophies,
	is_ladder_tournament, battle_type`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBattle(r rowScanner) (model.Battle, error) {
	var (
		b                    model.Battle
		bt                   dbTime
		pc, oc, pt, ot       sql.NullInt64
		opp, mode, arena, ty sql.NullString
	)
	if err := r.Scan(
		&b.BattleID, &b.PlayerTag, &opp, &bt, &mode, &arena,
		&pc, &oc, &pt, &ot, &b.IsLadderTournament, &ty,
	); err != nil {
		return b, err
	}
	b.OpponentTag, b.Mode, b.Arena, b.BattleType = opp.String, mode.String, arena.String, ty.String
	b.BattleTime = bt.ptr()
	b.PlayerCrowns, b.OpponentCrowns = intPtr(pc), intPtr(oc)
	b.PlayerTrophies, b.OpponentTrophies = intPtr(pt), intPtr(ot)
	return b, nil
}

// Battle fetches one stored battle by id.
func (db *DB) Battle(ctx context.Context, id string) (*model.Battle, error) {
	b, err := scanBattle(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+battleColumns+` FROM fact_battles WHERE battle_id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BattleByPrefix finds the first battle whose id starts with prefix.
func (db *DB) BattleByPrefix(ctx context.Context, prefix string) (*model.Battle, error) {
	b, err := scanBattle(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+battleColumns+` FROM fact_battles WHERE battle_id LIKE ? ORDER BY battle_id LIMIT 1`),
		prefix+"%"))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBattles returns the most recent battles, newest first. A non-empty
// playerTag restricts the list to battles reported by that player.
func (db *DB) ListBattles(ctx context.Context, playerTag string, limit int) ([]model.Battle, error) {
	q := `SELECT ` + battleColumns + ` FROM fact_battles`
	var args []any
	if playerTag != "" {
		q += ` WHERE player_tag = ?`
		args = append(args, playerTag)
	}
	q += ` ORDER BY battle_time DESC, battle_id LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, db.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Battle
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BattleCards returns the card rows of one battle, player side first.
func (db *DB) BattleCards(ctx context.Context, battleID string) ([]model.BattleCard, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT battle_id, side, card_id, card_level, evolution_level
		FROM battle_cards WHERE battle_id = ?
		ORDER BY CASE side WHEN 'player' THEN 0 ELSE 1 END, card_id`), battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BattleCard
	for rows.Next() {
		var (
			c     model.BattleCard
			side  string
			lv, e sql.NullInt64
		)
		if err := rows.Scan(&c.BattleID, &side, &c.CardID, &lv, &e); err != nil {
			return nil, err
		}
		c.Side = model.ParseSide(side)
		c.CardLevel, c.EvolutionLevel = intPtr(lv), intPtr(e)
		out = append(out, c)
	}
	return out, rows.Err()
}
