package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// Path is the database file, or MemoryPath.
	Path string

	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration

	// MaxOpenConns bounds the pool. In-memory databases always use one
	// connection because each connection would see its own database.
	MaxOpenConns int
}

// OpenSQLite opens the embedded store with WAL journaling, foreign keys and
// a busy timeout applied to every pooled connection.
func OpenSQLite(ctx context.Context, opts SQLiteOptions, logger zerolog.Logger) (*sql.DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 10 * time.Second
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 4
	}

	memory := opts.Path == MemoryPath
	if memory {
		opts.MaxOpenConns = 1
	} else if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", sqliteDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	if memory {
		// Closing the last connection would discard the database.
		db.SetConnMaxLifetime(0)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	logger.Info().
		Str("path", opts.Path).
		Int("max_open_conns", opts.MaxOpenConns).
		Msg("sqlite database opened")

	return db, nil
}

func sqliteDSN(opts SQLiteOptions) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	if opts.Path != MemoryPath {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
	}
	params.Set("_txlock", "immediate")

	return "file:" + opts.Path + "?" + params.Encode()
}
