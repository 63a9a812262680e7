package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/genpod/internal/sqlitedb"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		thread_id TEXT    NOT NULL,
		step      INTEGER NOT NULL,
		phase     TEXT    NOT NULL,
		version   TEXT    NOT NULL,
		digest    TEXT    NOT NULL,
		state     BLOB    NOT NULL,
		saved_at  TEXT    NOT NULL,
		PRIMARY KEY (thread_id, step)
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_saved ON checkpoints(saved_at DESC);
`

// SQLiteStore keeps every step's snapshot in a SQLite table. Load returns the
// highest step; older steps remain available through LoadStep.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlitedb.Open(ctx, path, sqliteSchema)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts the snapshot, replacing an existing row for the same step.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("checkpoint snapshot is nil")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checkpoints (thread_id, step, phase, version, digest, state, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ThreadID, snap.Step, snap.Phase, snap.Version, snap.Digest, []byte(snap.State),
		snap.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s step %d: %w", snap.ThreadID, snap.Step, err)
	}
	return nil
}

// Load returns the latest snapshot of threadID.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, step, phase, version, digest, state, saved_at
		FROM checkpoints WHERE thread_id = ?
		ORDER BY step DESC LIMIT 1`, threadID)
	return scanSnapshot(row, threadID)
}

// LoadStep returns the snapshot saved after a specific step.
func (s *SQLiteStore) LoadStep(ctx context.Context, threadID string, step int) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, step, phase, version, digest, state, saved_at
		FROM checkpoints WHERE thread_id = ? AND step = ?`, threadID, step)
	return scanSnapshot(row, threadID)
}

func scanSnapshot(row *sql.Row, threadID string) (*Snapshot, error) {
	var (
		snap    Snapshot
		state   []byte
		savedAt string
	)
	err := row.Scan(&snap.ThreadID, &snap.Step, &snap.Phase, &snap.Version, &snap.Digest, &state, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}

	snap.State = state
	if snap.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return nil, fmt.Errorf("%w: %s: bad timestamp %q", ErrCorrupt, threadID, savedAt)
	}
	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns the latest step of every thread, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.thread_id, c.step, c.phase, c.saved_at
		FROM checkpoints c
		JOIN (SELECT thread_id, MAX(step) AS step FROM checkpoints GROUP BY thread_id) latest
		  ON latest.thread_id = c.thread_id AND latest.step = c.step
		ORDER BY c.saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			savedAt string
		)
		if err := rows.Scan(&sum.ThreadID, &sum.Step, &sum.Phase, &savedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		sum.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes every step of threadID.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", threadID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
