// Package sqldoc stores schemaless documents in a single SQL table. The JSON
// body is authoritative; slug, locale, status, group_id and email are copied
// into columns on every write so queries never parse JSON in SQL.
package sqldoc

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"realty_content/internal/domain"
)

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// Open connects with the dialect's driver ("mysql" or modernc "sqlite").
func Open(d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(string(d), dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "sqldoc: open %s", d)
	}
	if d == SQLite {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, eris.Wrapf(err, "sqldoc: exec %s", pragma)
			}
		}
	}
	return New(db, d), nil
}

func (s *Store) Migrate(ctx context.Context) error {
	b, err := migrations.ReadFile("migrations/" + string(s.dialect) + ".sql")
	if err != nil {
		return eris.Wrapf(err, "sqldoc: no migration for %s", s.dialect)
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return wrap(err, "sqldoc: migrate")
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return eris.Wrap(fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err), "sqldoc: ping")
	}
	return nil
}

func (s *Store) Close(context.Context) error { return s.db.Close() }

// ---- reads ----

func (s *Store) FindByID(ctx context.Context, k domain.Kind, id domain.ID) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, selectByIDSQL, string(k), string(id))
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrNotFound
	}
	return d, wrap(err, "sqldoc: find by id")
}

func (s *Store) Find(ctx context.Context, k domain.Kind, q domain.Query) ([]domain.Document, error) {
	where, args := buildWhere(k, q)
	rows, err := s.db.QueryContext(ctx, selectDocumentsSQL+where+orderSQL, args...)
	if err != nil {
		return nil, wrap(err, "sqldoc: find")
	}
	defer rows.Close()

	out := []domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, wrap(err, "sqldoc: scan")
		}
		out = append(out, d)
	}
	return out, wrap(rows.Err(), "sqldoc: rows")
}

// ---- writes ----

func (s *Store) Insert(ctx context.Context, k domain.Kind, fields map[string]any) (domain.ID, error) {
	d := domain.NewDocument(domain.ID(uuid.NewString()), fields)
	if err := s.insert(ctx, s.db, k, d); err != nil {
		return "", err
	}
	return d.ID, nil
}

func (s *Store) Update(ctx context.Context, k domain.Kind, id domain.ID, fields map[string]any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.lockByID(ctx, tx, k, id)
		if err != nil {
			return err
		}
		return s.replace(ctx, tx, k, cur.Merge(fields))
	})
}

func (s *Store) Upsert(ctx context.Context, k domain.Kind, q domain.Query, fields map[string]any) (domain.ID, error) {
	var id domain.ID
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		where, args := buildWhere(k, q)
		row := tx.QueryRowContext(ctx, selectDocumentsSQL+where+orderSQL+" LIMIT 1"+s.forUpdate(), args...)
		cur, err := scanDocument(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			d := domain.NewDocument(domain.ID(uuid.NewString()), fields)
			id = d.ID
			return s.insert(ctx, tx, k, d)
		case err != nil:
			return wrap(err, "sqldoc: upsert select")
		}
		id = cur.ID
		return s.replace(ctx, tx, k, cur.Merge(fields))
	})
	return id, err
}

func (s *Store) Increment(ctx context.Context, k domain.Kind, id domain.ID, field string, delta int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.lockByID(ctx, tx, k, id)
		if err != nil {
			return err
		}
		n, _ := cur.Number(field)
		return s.replace(ctx, tx, k, cur.Merge(map[string]any{field: n + float64(delta)}))
	})
}

func (s *Store) Delete(ctx context.Context, k domain.Kind, id domain.ID) error {
	res, err := s.db.ExecContext(ctx, deleteSQL, string(k), string(id))
	if err != nil {
		return wrap(err, "sqldoc: delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err, "sqldoc: delete rows affected")
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- internals ----

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) insert(ctx context.Context, ex execer, k domain.Kind, d domain.Document) error {
	body, err := json.Marshal(d.Fields)
	if err != nil {
		return eris.Wrap(err, "sqldoc: marshal body")
	}
	c := columnsOf(k, d)
	now := s.now()
	_, err = ex.ExecContext(ctx, insertSQL,
		string(d.ID), string(k), c.slug, c.locale, c.status, c.groupID, c.email, string(body), now, now)
	return wrap(err, "sqldoc: insert")
}

func (s *Store) replace(ctx context.Context, ex execer, k domain.Kind, d domain.Document) error {
	body, err := json.Marshal(d.Fields)
	if err != nil {
		return eris.Wrap(err, "sqldoc: marshal body")
	}
	c := columnsOf(k, d)
	_, err = ex.ExecContext(ctx, updateSQL,
		c.slug, c.locale, c.status, c.groupID, c.email, string(body), s.now(), string(k), string(d.ID))
	return wrap(err, "sqldoc: update")
}

func (s *Store) lockByID(ctx context.Context, tx *sql.Tx, k domain.Kind, id domain.ID) (domain.Document, error) {
	row := tx.QueryRowContext(ctx, selectByIDSQL+s.forUpdate(), string(k), string(id))
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, wrap(err, "sqldoc: select for update")
	}
	return d, nil
}

func (s *Store) forUpdate() string {
	if s.dialect == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err, "sqldoc: begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrap(tx.Commit(), "sqldoc: commit")
}

func scanDocument(sc scanner) (domain.Document, error) {
	var id, body string
	if err := sc.Scan(&id, &body); err != nil {
		return domain.Document{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return domain.Document{}, eris.Wrapf(err, "sqldoc: decode body of %s", id)
	}
	return domain.NewDocument(domain.ID(id), fields), nil
}

type columns struct {
	slug, locale, status, groupID, email any
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func columnsOf(k domain.Kind, d domain.Document) columns {
	return columns{
		slug:    nullable(d.Slug()),
		locale:  nullable(d.Locale(k)),
		status:  nullable(d.String("status")),
		groupID: nullable(d.String("group_id")),
		email:   nullable(strings.ToLower(d.String("email"))),
	}
}

func buildWhere(k domain.Kind, q domain.Query) (string, []any) {
	var b strings.Builder
	args := []any{string(k)}
	b.WriteString(" WHERE collection = ?")
	if q.Locale != "" {
		if q.IncludeUntagged {
			b.WriteString(" AND (locale = ? OR locale IS NULL)")
		} else {
			b.WriteString(" AND locale = ?")
		}
		args = append(args, q.Locale)
	}
	for _, f := range []struct{ col, val string }{
		{"slug", q.Slug},
		{"status", q.Status},
		{"group_id", q.GroupID},
		{"email", strings.ToLower(q.Email)},
	} {
		if f.val != "" {
			b.WriteString(" AND " + f.col + " = ?")
			args = append(args, f.val)
		}
	}
	return b.String(), args
}

// wrap marks connectivity failures as domain.ErrStoreUnavailable.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &ne) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return eris.Wrap(err, msg)
}
