package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Options describes how to reach the database. Driver selects MySQL
// (production) or SQLite (local runs); the remaining fields apply to
// whichever driver is chosen.
type Options struct {
	Driver          string
	User            string
	Pass            string
	Host            string
	Port            string
	Name            string
	Path            string
	LockWaitTimeout int // seconds, MySQL only
	AutoMigrate     bool
}

// Open connects to the configured database, verifies the connection and,
// when AutoMigrate is set, brings the schema up to date.
func Open(ctx context.Context, opts Options) (*sql.DB, Dialect, error) {
	d, err := ParseDialect(opts.Driver)
	if err != nil {
		return nil, "", err
	}
	if d == SQLite {
		db, err := OpenSQLite(ctx, opts.Path, opts.AutoMigrate)
		return db, d, err
	}

	db, err := openMySQL(opts)
	if err != nil {
		return nil, "", err
	}
	if opts.AutoMigrate {
		if err := Migrate(db); err != nil {
			_ = db.Close()
			return nil, "", err
		}
	}
	return db, d, nil
}

func openMySQL(opts Options) (*sql.DB, error) {
	auth := opts.User
	if opts.Pass != "" {
		auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	// multiStatements lets a migration file carry several statements
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&multiStatements=true",
		auth, opts.Host, opts.Port, opts.Name)
	if opts.LockWaitTimeout > 0 {
		dsn += fmt.Sprintf("&innodb_lock_wait_timeout=%d", opts.LockWaitTimeout)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database at path (":memory:" for a private
// in-memory database). The pool is pinned to a single connection so that
// an in-memory database survives and writers are serialized.
func OpenSQLite(ctx context.Context, path string, applySchema bool) (*sql.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if applySchema {
		if err := ApplySQLiteSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// PoolStats is the subset of sql.DBStats reported by the health endpoint.
type PoolStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// HealthCheck pings the database with a short timeout and returns the
// current pool statistics.
func HealthCheck(ctx context.Context, db *sql.DB) (PoolStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	s := db.Stats()
	stats := PoolStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
	}
	if err := db.PingContext(ctx); err != nil {
		return stats, fmt.Errorf("database ping: %w", err)
	}
	return stats, nil
}
