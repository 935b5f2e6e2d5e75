package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/config"
)

// Open builds the backend selected by cfg.Backend
func Open(cfg config.StorageConfig, logger *zap.Logger) (KV, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryKV(), nil
	case "file":
		return NewFileKV(cfg.Path)
	case "redis":
		return NewRedisKV(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix, logger)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		return NewSQLKV("sqlite3", cfg.Path, logger)
	case "postgres":
		return NewSQLKV("pgx", cfg.DatabaseDSN, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
