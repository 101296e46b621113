// Package journal records every save ttsync writes or backs up in a small
// sqlite database, so an operator can see what a watch session did.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id        TEXT PRIMARY KEY,
	at        INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	save_path TEXT NOT NULL,
	save_name TEXT NOT NULL,
	changes   TEXT NOT NULL
)`

// Entry is one journaled commit or backup.
type Entry struct {
	ID       ulid.ULID
	At       time.Time
	Kind     string
	SavePath string
	SaveName string
	// Changes holds one human-readable line per change.
	Changes []string
}

// Journal is an open journal database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores e, assigning its ID and timestamp when unset.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.At.IsZero() {
		e.At = j.now()
	}
	if e.ID == (ulid.ULID{}) {
		e.ID = ulid.MustNew(ulid.Timestamp(e.At), ulid.DefaultEntropy())
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO entries (id, at, kind, save_path, save_name, changes) VALUES (?, ?, ?, ?, ?, ?)",
		e.ID.String(), e.At.UnixNano(), e.Kind, e.SavePath, e.SaveName, strings.Join(e.Changes, "\n"))
	if err != nil {
		return e, fmt.Errorf("record %s entry: %w", e.Kind, err)
	}
	return e, nil
}

// List returns the newest entries first. limit <= 0 returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	q := "SELECT id, at, kind, save_path, save_name, changes FROM entries ORDER BY id DESC"
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			id, changes string
			at          int64
			e           Entry
		)
		if err := rows.Scan(&id, &at, &e.Kind, &e.SavePath, &e.SaveName, &changes); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.ID, err = ulid.ParseStrict(id); err != nil {
			return nil, fmt.Errorf("journal entry %q: %w", id, err)
		}
		e.At = time.Unix(0, at)
		if changes != "" {
			e.Changes = strings.Split(changes, "\n")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
