// Package journal keeps an append-only SQLite record of bus events for
// auditing. It is a subscriber like any other; the bus never reads from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCursorWithoutBus is returned when a Filter sets AfterSequence but no BusID.
var ErrCursorWithoutBus = errors.New("journal: after sequence requires a bus id")

// DefaultListLimit is used when a Filter has no positive Limit.
const DefaultListLimit = 50

// Entry is one journaled event.
type Entry struct {
	BusID      string          `json:"bus_id"`
	Sequence   uint64          `json:"sequence"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EmittedAt  time.Time       `json:"emitted_at"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Filter narrows a List query. Zero values mean "no constraint".
// Sequences restart with every bus, so AfterSequence is only meaningful
// together with BusID.
type Filter struct {
	BusID         string
	Type          string
	AfterSequence uint64
	Limit         int
}

// Store persists journal entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Append inserts an entry. Re-recording the same (bus_id, sequence) is ignored.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal_events (bus_id, sequence, type, payload, emitted_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.BusID, int64(e.Sequence), e.Type, string(payload), //nolint:gosec // sequence stays far below MaxInt64
		e.EmittedAt.UTC(), e.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}
	return nil
}

// List returns entries ordered by emission time descending.
func (s *SQLiteStore) List(ctx context.Context, f Filter) (entries []Entry, err error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var where []string
	var args []any
	if f.BusID != "" {
		where = append(where, "bus_id = ?")
		args = append(args, f.BusID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.AfterSequence > 0 {
		if f.BusID == "" {
			return nil, ErrCursorWithoutBus
		}
		where = append(where, "sequence > ?")
		args = append(args, int64(f.AfterSequence)) //nolint:gosec // sequence stays far below MaxInt64
	}

	query := `SELECT bus_id, sequence, type, payload, emitted_at, recorded_at FROM journal_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY emitted_at DESC, sequence DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var e Entry
		var seq int64
		var payload string
		if err := rows.Scan(&e.BusID, &seq, &e.Type, &payload, &e.EmittedAt, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.Sequence = uint64(seq) //nolint:gosec // stored from a uint64
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return entries, nil
}

// Prune deletes entries emitted before the cutoff and returns how many were removed.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_events WHERE emitted_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return n, nil
}

// Count returns the number of journaled entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting journal entries: %w", err)
	}
	return n, nil
}
