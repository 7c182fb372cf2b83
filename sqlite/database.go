// Package sqlite provides a SQLite-backed locality database. It can be used as a feature source
// ("sqlite://?dsn=...") for the feature store, as a whosonfirst/go-reader and go-writer, and as a
// locality fetcher.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	gocache "github.com/patrickmn/go-cache"
)

// SQLiteDatabase stores locality records in a single SQLite table.
type SQLiteDatabase struct {
	db               *sql.DB
	dsn              string
	localities_table *LocalitiesTable
	mu               *sync.RWMutex
	gocache          *gocache.Cache
}

// NewSQLiteDatabase returns a new SQLiteDatabase for 'uri' which is expected to take the form of:
//
//	sqlite://?dsn={DSN}&default_expiration={SECONDS}&cleanup_interval={SECONDS}
//
// Where 'dsn' is required. The table is created if it does not exist.
func NewSQLiteDatabase(ctx context.Context, uri string) (*SQLiteDatabase, error) {

	u, err := url.Parse(uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse URI, %w", err)
	}

	q := u.Query()

	dsn := q.Get("dsn")

	if dsn == "" {
		return nil, fmt.Errorf("Missing 'dsn' parameter")
	}

	expires := 5 * time.Minute
	cleanup := 30 * time.Minute

	str_exp := q.Get("default_expiration")
	str_cleanup := q.Get("cleanup_interval")

	if str_exp != "" {

		int_expires, err := strconv.Atoi(str_exp)

		if err != nil {
			return nil, fmt.Errorf("Invalid 'default_expiration' parameter, %w", err)
		}

		expires = time.Duration(int_expires) * time.Second
	}

	if str_cleanup != "" {

		int_cleanup, err := strconv.Atoi(str_cleanup)

		if err != nil {
			return nil, fmt.Errorf("Invalid 'cleanup_interval' parameter, %w", err)
		}

		cleanup = time.Duration(int_cleanup) * time.Second
	}

	conn, err := sql.Open("sqlite3", dsn)

	if err != nil {
		return nil, fmt.Errorf("Failed to open database, %w", err)
	}

	// Each connection to an in-memory database is a distinct database.

	if dsn == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	localities_table, err := NewLocalitiesTableWithDatabase(ctx, conn)

	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("Failed to create localities table, %w", err)
	}

	gc := gocache.New(expires, cleanup)

	mu := new(sync.RWMutex)

	db := &SQLiteDatabase{
		db:               conn,
		dsn:              dsn,
		localities_table: localities_table,
		mu:               mu,
		gocache:          gc,
	}

	slog.Debug("Open locality database", "dsn", dsn)
	return db, nil
}

// Disconnect will close the underlying database connection.
func (r *SQLiteDatabase) Disconnect(ctx context.Context) error {
	return r.db.Close()
}

// Count returns the number of localities in the database.
func (r *SQLiteDatabase) Count(ctx context.Context) (int, error) {

	q := fmt.Sprintf("SELECT COUNT(id) FROM %s", LOCALITIES_TABLE_NAME)

	var count int

	err := r.db.QueryRowContext(ctx, q).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("Failed to count localities, %w", err)
	}

	return count, nil
}
