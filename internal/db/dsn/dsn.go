// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"strings"

	"github.com/voxguild/permengine/internal/config"
)

// Create builds the Data Source Name for cfg.Engine.
func Create(cfg config.DB) string {
	switch cfg.Engine {
	case config.EnginePostgres:
		return Postgres(cfg)
	case config.EngineSQLite:
		return SQLite(cfg)
	default:
		return MySQL(cfg)
	}
}

// MySQL builds a go-sql-driver DSN.
func MySQL(cfg config.DB) string {
	out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	if cfg.Extras != "" {
		out += "?" + cfg.Extras
	}

	return out
}

// Postgres builds a keyword/value DSN. Extras are appended verbatim, e.g. "sslmode=disable".
func Postgres(cfg config.DB) string {
	parts := []string{
		"host=" + cfg.Host,
		fmt.Sprintf("port=%d", cfg.Port),
		"user=" + cfg.User,
		"password=" + cfg.Password,
		"dbname=" + cfg.Name,
	}

	if cfg.Extras != "" {
		parts = append(parts, cfg.Extras)
	}

	return strings.Join(parts, " ")
}

// SQLite returns the database path with extras as query string.
func SQLite(cfg config.DB) string {
	if cfg.Extras == "" {
		return cfg.Path
	}

	return cfg.Path + "?" + cfg.Extras
}
