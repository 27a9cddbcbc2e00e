package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pable/go-cr-metrics/internal/aggregator"
	"github.com/pable/go-cr-metrics/internal/model"
)

// AggregationInput loads the battle and card rows the aggregator consumes.
// A non-zero since restricts both to battles at or after it.
func (db *DB) AggregationInput(ctx context.Context, since time.Time) ([]aggregator.BattleRow, []aggregator.CardRow, error) {
	where, args := "", []any{}
	if !since.IsZero() {
		where, args = " WHERE b.battle_time >= ?", append(args, formatTime(since))
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT b.battle_id, b.player_crowns, b.opponent_crowns, b.player_trophies, b.opponent_trophies
		FROM fact_battles b`+where), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query battles: %w", err)
	}
	var battles []aggregator.BattleRow
	for rows.Next() {
		var r aggregator.BattleRow
		var pc, oc, pt, ot sql.NullInt64
		if err := rows.Scan(&r.BattleID, &pc, &oc, &pt, &ot); err != nil {
			rows.Close()
			return nil, nil, err
		}
		r.PlayerCrowns, r.OpponentCrowns = intPtr(pc), intPtr(oc)
		r.PlayerTrophies, r.OpponentTrophies = intPtr(pt), intPtr(ot)
		battles = append(battles, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.conn.QueryContext(ctx, db.rebind(`
		SELECT c.battle_id, c.side, c.card_id
		FROM battle_cards c
		JOIN fact_battles b ON b.battle_id = c.battle_id`+where), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query battle cards: %w", err)
	}
	defer rows.Close()
	var cards []aggregator.CardRow
	for rows.Next() {
		var c aggregator.CardRow
		var side string
		if err := rows.Scan(&c.BattleID, &side, &c.CardID); err != nil {
			return nil, nil, err
		}
		c.Side = model.ParseSide(side)
		cards = append(cards, c)
	}
	return battles, cards, rows.Err()
}

// ModeCount is the number of stored battles of one game mode.
type ModeCount struct {
	Mode    string
	Battles int64
	Oldest  *time.Time
	Newest  *time.Time
}

// Overview returns battle counts per game mode, largest first.
func (db *DB) Overview(ctx context.Context) ([]ModeCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT COALESCE(mode, ''), COUNT(*), MIN(battle_time), MAX(battle_time)
		FROM fact_battles
		GROUP BY COALESCE(mode, '')
		ORDER BY COUNT(*) DESC, COALESCE(mode, '')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModeCount
	for rows.Next() {
		var m ModeCount
		var oldest, newest dbTime
		if err := rows.Scan(&m.Mode, &m.Battles, &oldest, &newest); err != nil {
			return nil, err
		}
		m.Oldest, m.Newest = oldest.ptr(), newest.ptr()
		out = append(out, m)
	}
	return out, rows.Err()
}

// QueryRaw runs an arbitrary query and returns column names and rows as strings.
func (db *DB) QueryRaw(ctx context.Context, query string) ([]string, [][]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = formatValue(v)
		}
		out = append(out, rec)
	}
	return cols, out, rows.Err()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// DropAll removes every table, including the migration ledger.
func (db *DB) DropAll(ctx context.Context) error {
	for _, t := range []string{"battle_cards", "fact_battles", "dim_cards", "goose_db_version"} {
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return nil
}
