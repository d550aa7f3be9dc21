package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

type migration struct {
	version int
	sql     string
}

// schema is applied in order; each version runs once and is recorded in
// schema_migrations.
var schema = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE journal_events (
    bus_id      TEXT NOT NULL,
    sequence    INTEGER NOT NULL,
    type        TEXT NOT NULL,
    payload     TEXT NOT NULL DEFAULT 'null',
    emitted_at  DATETIME NOT NULL,
    recorded_at DATETIME NOT NULL,
    PRIMARY KEY (bus_id, sequence)
);
CREATE INDEX idx_journal_events_type ON journal_events(type, emitted_at);
CREATE INDEX idx_journal_events_emitted ON journal_events(emitted_at);
`,
	},
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// OpenSQLite opens (or creates) the journal database at dbPath in WAL mode
// and brings its schema up to date.
func OpenSQLite(dbPath string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	// One connection: SQLite has a single writer and the recorder is the
	// only one writing.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := prepare(context.Background(), db, logger); err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("journal: closing database after setup failure", "path", dbPath, "error", cerr)
		}
		return nil, err
	}
	return db, nil
}

func prepare(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	if err := migrate(ctx, db, logger, schema); err != nil {
		return fmt.Errorf("migrating journal schema: %w", err)
	}
	return nil
}

// migrate applies every migration newer than the recorded schema version.
func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, ms []migration) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range ms {
		if m.version <= current {
			continue
		}
		if err := applyInTx(ctx, db, m); err != nil {
			logger.Error("journal: migration failed", "version", m.version, "error", err)
			return err
		}
		logger.Debug("journal: migration applied", "version", m.version)
	}
	return nil
}

func applyInTx(ctx context.Context, db *sql.DB, m migration) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if _, err = tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
