package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hurou927/schemashift/internal/config"
)

// SQLite DSN parameters. Foreign keys stay off on the rebuild connection:
// DROP TABLE would otherwise run an implicit DELETE against referencing rows.
// Integrity is checked explicitly with PRAGMA foreign_key_check before commit.
const (
	sqliteBusyTimeout = "5000"
	sqliteJournalMode = "WAL"
	sqliteSynchronous = "NORMAL"
)

// Conn is an open database handle plus whatever has to be released with it.
type Conn struct {
	*sqlx.DB
	Driver string

	release func()
}

// Close closes the handle and any pool behind it.
func (c *Conn) Close() error {
	err := c.DB.Close()
	if c.release != nil {
		c.release()
	}
	return err
}

// Open connects to the database described by cfg and returns a single-writer handle.
func Open(ctx context.Context, cfg *config.Database) (*Conn, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
		return &Conn{DB: db, Driver: cfg.Driver}, nil
	case config.DriverPostgres:
		return OpenPostgres(ctx, &cfg.Connection)
	case config.DriverMySQL:
		db, err := OpenMySQL(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Conn{DB: db, Driver: cfg.Driver}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// OpenSQLite opens the SQLite file at path with one connection, so every
// statement of a migration runs on the same session.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	return db, nil
}

// SQLiteDSN builds the DSN used for rebuild sessions.
func SQLiteDSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", sqliteJournalMode)
	params.Set("_busy_timeout", sqliteBusyTimeout)
	params.Set("_synchronous", sqliteSynchronous)
	params.Set("_foreign_keys", "off")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// NewPool creates a new pgx connection pool from config.
func NewPool(ctx context.Context, cfg *config.Connection) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// OpenPostgres wraps a pgx pool in a database/sql handle. The stdlib wrapper
// leaves the pool open on Close, so the returned Conn closes it.
func OpenPostgres(ctx context.Context, cfg *config.Connection) (*Conn, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	sqlDB.SetMaxOpenConns(1)

	return &Conn{
		DB:      sqlx.NewDb(sqlDB, "pgx"),
		Driver:  config.DriverPostgres,
		release: pool.Close,
	}, nil
}

// OpenMySQL opens a MySQL connection after validating the DSN.
func OpenMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	parsed.ParseTime = true
	parsed.MultiStatements = false

	db, err := sqlx.Open("mysql", parsed.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening mysql: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging mysql: %w", err)
	}
	return db, nil
}

func ping(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
