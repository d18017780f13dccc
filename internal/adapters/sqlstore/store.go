// Package sqlstore implements ports.Store on database/sql, against PostgreSQL
// in production and SQLite for local runs and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jpillora/backoff"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/shiporbit/shiporbit/internal/core/domain"
)

// Driver names accepted by Open.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

const sqliteTime = "2006-01-02T15:04:05.000000Z"

// Store implements ports.Store.
type Store struct {
	db      *sql.DB
	dialect string
}

// Config selects and locates the database.
type Config struct {
	Driver string
	// DSN is a postgres connection string or a sqlite file path.
	DSN string
	// ConnectTimeout bounds how long Open waits for the database to accept connections.
	ConnectTimeout time.Duration
}

// PostgresDSN builds a keyword/value connection string.
func PostgresDSN(host, port, name, user, password string) string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=prefer",
		host, port, name, user, password)
}

// Open connects, waits for the database to come up and applies the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case Postgres:
		db, err = sql.Open("pgx", cfg.DSN)
	case SQLite:
		db, err = sql.Open("sqlite", cfg.DSN)
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s db: %w", cfg.Driver, err)
	}

	if err := waitForDB(ctx, db, cfg.ConnectTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: cfg.Driver}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// waitForDB pings until the database answers; containers often start before it does.
func waitForDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	boff := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		wait := boff.Duration()
		log.WithField("error", err).Warnf("database not ready, retrying in %s", wait)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not reachable: %w", err)
		case <-time.After(wait):
		}
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.dialect == Postgres {
		schema = postgresSchema
	} else if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// inTx runs fn in a transaction, rolling back when it fails.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// rebind turns ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
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

// ts converts a timestamp into the representation the dialect stores.
func (s *Store) ts(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTime)
}

func (s *Store) tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.ts(*t)
}

func (s *Store) date(t time.Time) any {
	if s.dialect == Postgres {
		return t
	}
	return t.Format(domain.DateLayout)
}

// timeValue scans timestamps and dates from either dialect.
type timeValue struct {
	t     *time.Time
	valid bool
}

func scanTime(t *time.Time) *timeValue { return &timeValue{t: t} }

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.valid = false
		return nil
	case time.Time:
		*v.t = x.UTC()
	case string:
		return v.parse(x)
	case []byte:
		return v.parse(string(x))
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
	v.valid = true
	return nil
}

func (v *timeValue) parse(s string) error {
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, domain.DateLayout, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			*v.t = t.UTC()
			v.valid = true
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// nullTime scans a nullable timestamp into a pointer.
type nullTime struct {
	dst **time.Time
}

func (n nullTime) Scan(src any) error {
	if src == nil {
		*n.dst = nil
		return nil
	}
	var t time.Time
	if err := (&timeValue{t: &t}).Scan(src); err != nil {
		return err
	}
	*n.dst = &t
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// conflict maps unique violations of both drivers onto domain.ErrConflict.
func conflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505") {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// prefixed qualifies every column of a comma separated list with table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
