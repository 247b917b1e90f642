package kv

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver string
	DSN    string
}

// Open returns a ready store for the configured driver. SQL backends are
// pinged and migrated before they are handed out.
func Open(ctx context.Context, o Options) (Store, error) {
	var (
		s   *SQLStore
		err error
	)
	switch o.Driver {
	case "", DriverMemory:
		return NewMemStore(), nil
	case DriverSQLite:
		s, err = openSQL(ctx, "sqlite", o.DSN, SQLite, 1)
	case DriverPostgres:
		s, err = openSQL(ctx, "pgx", o.DSN, Postgres, 10)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", o.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQL(ctx context.Context, driverName, dsn string, d Dialect, maxOpen int) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", d.Name)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", d.Name, err)
	}

	// sqlite allows a single writer, and ":memory:" is per connection.
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := NewSQLStore(db, d)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", d.Name, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
