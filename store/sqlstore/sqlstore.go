// Package sqlstore implements a store.Backend over database/sql, grounded
// on the driver-registration idiom of the teacher's graph/sql family
// (graph/sql/sqlite, graph/sql/postgres, graph/sql/mysql each registering a
// dialect) but collapsed to the single flat key/value table our simpler
// store.Backend contract needs: one row per index entry, keyed on the
// opaque codec-produced byte key.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/knowgraph/qdb/store"
)

// Dialect captures the handful of SQL differences between the three
// supported drivers: placeholder syntax and the upsert clause.
type dialect struct {
	driver      string
	placeholder func(n int) string
	upsert      string // appended after INSERT INTO qdb_index(key, value) VALUES (...)
}

var dialects = map[string]dialect{
	"sqlite3": {
		driver:      "sqlite3",
		placeholder: func(int) string { return "?" },
		upsert:      "ON CONFLICT(key) DO UPDATE SET value = excluded.value",
	},
	"postgres": {
		driver:      "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		upsert:      "ON CONFLICT(key) DO UPDATE SET value = excluded.value",
	},
	"mysql": {
		driver:      "mysql",
		placeholder: func(int) string { return "?" },
		upsert:      "ON DUPLICATE KEY UPDATE value = VALUES(value)",
	},
}

// Backend is a store.Backend over a relational database reached through
// database/sql.
type Backend struct {
	db *sql.DB
	d  dialect
}

var _ store.Backend = (*Backend)(nil)

// Open connects using dsn, whose scheme prefix ("sqlite://", "postgres://",
// "mysql://") selects the driver; the prefix is stripped before the
// remainder is passed to the driver unchanged.
func Open(dsn string) (*Backend, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("sqlstore: dsn %q has no scheme (expected sqlite://, postgres://, or mysql://)", dsn)
	}
	var d dialect
	switch scheme {
	case "sqlite", "sqlite3":
		d = dialects["sqlite3"]
	case "postgres", "postgresql":
		d = dialects["postgres"]
	case "mysql":
		d = dialects["mysql"]
	default:
		return nil, fmt.Errorf("sqlstore: unknown scheme %q", scheme)
	}

	db, err := sql.Open(d.driver, rest)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS qdb_index (key BLOB PRIMARY KEY, value BLOB)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create table: %w", err)
	}
	return &Backend{db: db, d: d}, nil
}

func (b *Backend) ph(n int) string { return b.d.placeholder(n) }

func (b *Backend) Put(ctx context.Context, key, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO qdb_index(key, value) VALUES (%s, %s) %s`,
		b.ph(1), b.ph(2), b.d.upsert)
	_, err := b.db.ExecContext(ctx, q, key, value)
	return err
}

func (b *Backend) Delete(ctx context.Context, key []byte) error {
	q := fmt.Sprintf(`DELETE FROM qdb_index WHERE key = %s`, b.ph(1))
	_, err := b.db.ExecContext(ctx, q, key)
	return err
}

func (b *Backend) Contains(ctx context.Context, key []byte) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM qdb_index WHERE key = %s`, b.ph(1))
	row := b.db.QueryRowContext(ctx, q, key)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (b *Backend) BatchPut(ctx context.Context, kvs []store.KV) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO qdb_index(key, value) VALUES (%s, %s) %s`,
		b.ph(1), b.ph(2), b.d.upsert)
	for _, kv := range kvs {
		if _, err := tx.ExecContext(ctx, q, kv.Key, kv.Value); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (b *Backend) scan(ctx context.Context, where string, args []interface{}, fn func(store.KV) (bool, error)) error {
	q := `SELECT key, value FROM qdb_index` + where + ` ORDER BY key`
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		cont, err := fn(store.KV{Key: k, Value: v})
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return rows.Err()
}

func (b *Backend) PrefixScan(ctx context.Context, prefix []byte, fn func(store.KV) (bool, error)) error {
	// No portable "starts with byte prefix" operator across sqlite/postgres/
	// mysql for BLOB columns, so PrefixScan fetches the covering range
	// [prefix, prefix-with-incremented-last-byte) and lets RangeScan's
	// ordering do the work.
	end := incrementBytes(prefix)
	if end == nil {
		return b.scan(ctx, fmt.Sprintf(` WHERE key >= %s`, b.ph(1)), []interface{}{prefix}, fn)
	}
	return b.scan(ctx, fmt.Sprintf(` WHERE key >= %s AND key < %s`, b.ph(1), b.ph(2)), []interface{}{prefix, end}, fn)
}

func (b *Backend) RangeScan(ctx context.Context, start, end []byte, fn func(store.KV) (bool, error)) error {
	switch {
	case start == nil && end == nil:
		return b.scan(ctx, "", nil, fn)
	case start == nil:
		return b.scan(ctx, fmt.Sprintf(` WHERE key < %s`, b.ph(1)), []interface{}{end}, fn)
	case end == nil:
		return b.scan(ctx, fmt.Sprintf(` WHERE key >= %s`, b.ph(1)), []interface{}{start}, fn)
	default:
		return b.scan(ctx, fmt.Sprintf(` WHERE key >= %s AND key < %s`, b.ph(1), b.ph(2)), []interface{}{start, end}, fn)
	}
}

func (b *Backend) Clear(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM qdb_index`)
	return err
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// incrementBytes returns the lexicographically smallest byte string greater
// than every string with prefix p, or nil if p is all 0xff (an empty
// range can't be expressed as an upper bound and callers fall back to an
// unbounded >= scan).
func incrementBytes(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}
