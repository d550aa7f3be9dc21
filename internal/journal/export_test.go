package journal

import (
	"context"
	"database/sql"
	"log/slog"
)

// ApplyMigration runs a single extra migration through the same path the
// journal schema uses.
func ApplyMigration(ctx context.Context, db *sql.DB, logger *slog.Logger, version int, stmt string) error {
	return migrate(ctx, db, logger, []migration{{version: version, sql: stmt}})
}
