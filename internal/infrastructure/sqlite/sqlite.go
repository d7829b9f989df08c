// Package sqlite stores bookings in a single SQLite file. It serves
// single-process deployments and tests that must run without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct{ SQL *sql.DB }

// Open opens path with foreign keys enforced and write transactions started
// with BEGIN IMMEDIATE. SQLite has a single writer, so the pool keeps one
// connection and callers queue for it instead of failing with SQLITE_BUSY.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_txlock", "immediate")
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	db, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &DB{SQL: db}, nil
}

func (d *DB) Close() error                   { return d.SQL.Close() }
func (d *DB) Ping(ctx context.Context) error { return d.SQL.PingContext(ctx) }
