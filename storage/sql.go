package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"memory-match/matcherrors"
)

// Dialect holds the statements that differ between SQL engines.
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string
	CreateTableQuery() string
	UpsertQuery() string
	ConfigureConnection(db *sql.DB) error
}

// SQLiteDialect targets mattn/go-sqlite3.
type SQLiteDialect struct{}

func (SQLiteDialect) DriverName() string { return "sqlite3" }

func (SQLiteDialect) CreateTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS kv_store (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
}

func (SQLiteDialect) UpsertQuery() string {
	return `INSERT INTO kv_store (k, v, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, updated_at = CURRENT_TIMESTAMP`
}

func (SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	return nil
}

// MySQLDialect targets go-sql-driver/mysql.
type MySQLDialect struct{}

func (MySQLDialect) DriverName() string { return "mysql" }

func (MySQLDialect) CreateTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS kv_store (
			k VARCHAR(255) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			updated_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		);
	`
}

func (MySQLDialect) UpsertQuery() string {
	return "INSERT INTO kv_store (k, v) VALUES (?, ?) " +
		"ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = CURRENT_TIMESTAMP(6)"
}

func (MySQLDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// SQLKV stores values in a single kv_store table through database/sql.
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens dsn with the dialect's driver and ensures the table exists.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLKV, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	kv, err := NewSQLKV(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("connected to SQL store", "tag", "storage", "driver", dialect.DriverName())
	return kv, nil
}

// NewSQLKV wraps an open database.
func NewSQLKV(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLKV, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := dialect.ConfigureConnection(db); err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}
	if _, err := db.ExecContext(ctx, dialect.CreateTableQuery()); err != nil {
		return nil, fmt.Errorf("failed to create kv_store: %w", err)
	}
	return &SQLKV{db: db, dialect: dialect}, nil
}

func (s *SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT v FROM kv_store WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matcherrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return v, nil
}

func (s *SQLKV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.UpsertQuery(), key, value); err != nil {
		return fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE k = ?`, key); err != nil {
		return fmt.Errorf("%w: %w", matcherrors.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}
