package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"memory-match/config"
)

// Open picks a backend from cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config) (KV, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "memory":
		return NewMemoryKV(), nil
	case "file", "":
		return NewFileKV(cfg.StoragePath)
	case "sqlite", "sqlite3":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
				return nil, err
			}
			dsn = filepath.Join(cfg.StoragePath, "memory-match.db") + "?_busy_timeout=5000"
		}
		return OpenSQL(ctx, SQLiteDialect{}, dsn)
	case "mysql":
		return OpenSQL(ctx, MySQLDialect{}, cfg.DatabaseURL)
	case "postgres", "postgresql":
		return NewPGKV(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
