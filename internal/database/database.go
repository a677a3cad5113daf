package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// sqliteDriverName is go-sqlite3 with a Unicode-aware lower(). The builtin
// only folds ASCII, which breaks case-insensitive search on names like "Émile".
const sqliteDriverName = "sqlite3_userdir"

func init() {
	sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

// unicodeLower backs the sqlite lower() override. NULL arrives as a nil
// byte slice and stays NULL; non-text values pass through unchanged.
func unicodeLower(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	default:
		return v
	}
}

// Options selects and tunes the backing database.
type Options struct {
	Driver             string // "postgres" or "sqlite"
	DSN                string // postgres connection string
	Path               string // sqlite file path or "file:...?mode=memory" URI
	MaxOpenConnections int
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, opts Options) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)

	switch opts.Driver {
	case "postgres":
		db, err = openPostgres(opts)
	case "sqlite":
		db, err = openSQLite(opts)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func openPostgres(opts Options) (*bun.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	maxConnections := opts.MaxOpenConnections
	if maxConnections <= 0 {
		maxConnections = 10
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(opts.DSN)))
	sqldb.SetMaxOpenConns(maxConnections)
	sqldb.SetMaxIdleConns(maxConnections / 2)
	sqldb.SetConnMaxLifetime(time.Hour)

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openSQLite(opts Options) (*bun.DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	sqldb, err := sql.Open(sqliteDriverName, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers anyway; a single connection also keeps
	// in-memory databases alive for the lifetime of the pool.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	if _, err := sqldb.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
