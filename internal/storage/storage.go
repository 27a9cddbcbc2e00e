package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect is the SQL flavour behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DB wraps a sql.DB for the battle store.
type DB struct {
	conn    *sql.DB
	dialect Dialect
}

// DialectFor picks the dialect from a DSN: postgres:// and postgresql://
// URLs are Postgres, anything else is a SQLite path.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to dsn and applies pending schema migrations.
func Open(dsn string) (*DB, error) {
	d := DialectFor(dsn)

	var (
		conn *sql.DB
		err  error
	)
	switch d {
	case Postgres:
		conn, err = sql.Open("postgres", dsn)
	default:
		conn, err = sql.Open("sqlite", sqliteDSN(dsn))
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if d == SQLite {
		// :memory: is per connection.
		conn.SetMaxOpenConns(1)
	}
	if err := migrate(conn, d); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn, dialect: d}, nil
}

// sqlitePragmas run on every new connection the driver opens.
var sqlitePragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}

// sqliteDSN appends the connection pragmas to a SQLite path or file: URI.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dsn)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

func migrate(conn *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	dialect, dir := "sqlite3", "migrations/sqlite"
	if d == Postgres {
		dialect, dir = "postgres", "migrations/postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(conn, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect reports which SQL flavour the store speaks.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeLayout is fixed width so SQLite text comparison orders by time.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbTime scans a timestamp stored as TIMESTAMPTZ (Postgres) or text (SQLite).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Valid = false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse stored time %q: %w", s, err)
	}
	t.Time, t.Valid = parsed.UTC(), true
	return nil
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
