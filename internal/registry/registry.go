// Package registry keeps the bookkeeping of projects, their microservice runs
// and the checkpoint thread of each run, so that a user can resume the most
// recent unfinished run.
package registry

import (
	"context"
	"database/sql"
	gerrors "errors"
	"time"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/sqlitedb"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	input      TEXT NOT NULL,
	license_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS microservices (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL REFERENCES projects(id),
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	project_path TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	thread_id       TEXT PRIMARY KEY,
	microservice_id TEXT NOT NULL REFERENCES microservices(id),
	user_id         TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_microservices_updated ON microservices(updated_at);
`

// DoneStatus is the run status of a finished run.
const DoneStatus = "DONE"

// Run is one microservice generation run and its checkpoint thread.
type Run struct {
	ProjectID      string
	MicroserviceID string
	ThreadID       string
	UserID         string
	Input          string
	LicenseURL     string
	Name           string
	Status         string
	ProjectPath    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Registry is the SQLite-backed run registry.
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the registry database at path.
func Open(ctx context.Context, path string) (*Registry, error) {
	db, err := sqlitedb.Open(ctx, path, schema)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryOpen, "open registry "+path, err)
	}
	return &Registry{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *Registry) Close() error {
	return r.db.Close()
}

// Register records a new project, its run and the run's thread in one
// transaction.
func (r *Registry) Register(ctx context.Context, run Run) error {
	if run.ProjectID == "" || run.MicroserviceID == "" || run.ThreadID == "" {
		return errors.New(errors.ErrCodeRegistryQuery, "run needs project, microservice and thread ids")
	}
	now := r.now().UnixNano()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRegistryQuery, "begin registration", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT OR IGNORE INTO projects (id, user_id, input, license_url, created_at) VALUES (?, ?, ?, ?, ?)`,
			[]any{run.ProjectID, run.UserID, run.Input, run.LicenseURL, now}},
		{`INSERT INTO microservices (id, project_id, name, status, project_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			[]any{run.MicroserviceID, run.ProjectID, run.Name, run.Status, run.ProjectPath, now, now}},
		{`INSERT INTO sessions (thread_id, microservice_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
			[]any{run.ThreadID, run.MicroserviceID, run.UserID, now}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return errors.Wrap(errors.ErrCodeRegistryQuery, "register run "+run.ThreadID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeRegistryQuery, "commit registration", err)
	}
	return nil
}

// RecordStatus updates the run behind threadID. An empty name keeps the
// stored one.
func (r *Registry) RecordStatus(ctx context.Context, threadID, status, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE microservices
		SET status = ?, name = CASE WHEN ? = '' THEN name ELSE ? END, updated_at = ?
		WHERE id = (SELECT microservice_id FROM sessions WHERE thread_id = ?)`,
		status, name, name, r.now().UnixNano(), threadID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRegistryQuery, "update run status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeRegistryNotFound, "no run registered for thread "+threadID)
	}
	return nil
}

const selectRun = `
	SELECT p.id, m.id, s.thread_id, s.user_id, p.input, p.license_url, m.name, m.status,
	       m.project_path, m.created_at, m.updated_at
	FROM sessions s
	JOIN microservices m ON m.id = s.microservice_id
	JOIN projects p ON p.id = m.project_id`

// Get returns the run behind threadID.
func (r *Registry) Get(ctx context.Context, threadID string) (Run, error) {
	rows, err := r.db.QueryContext(ctx, selectRun+` WHERE s.thread_id = ?`, threadID)
	if err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeRegistryQuery, "get run", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, errors.New(errors.ErrCodeRegistryNotFound, "no run registered for thread "+threadID).
			WithSuggestion("Run 'genpod checkpoint list' to see known threads")
	}
	return runs[0], nil
}

// Incomplete returns the user's runs that have not reached DONE, most
// recently updated first.
func (r *Registry) Incomplete(ctx context.Context, userID string) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		selectRun+` WHERE s.user_id = ? AND m.status <> ? ORDER BY m.updated_at DESC, m.rowid DESC`,
		userID, DoneStatus)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryQuery, "list incomplete runs", err)
	}
	return scanRuns(rows)
}

// Latest returns the user's most recent incomplete run.
func (r *Registry) Latest(ctx context.Context, userID string) (Run, error) {
	runs, err := r.Incomplete(ctx, userID)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, errors.New(errors.ErrCodeRegistryNotFound, "no incomplete run for user "+userID).
			WithSuggestion("Start a new run with 'genpod generate'")
	}
	return runs[0], nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var run Run
		var created, updated int64
		if err := rows.Scan(&run.ProjectID, &run.MicroserviceID, &run.ThreadID, &run.UserID,
			&run.Input, &run.LicenseURL, &run.Name, &run.Status, &run.ProjectPath, &created, &updated); err != nil {
			return nil, errors.Wrap(errors.ErrCodeRegistryQuery, "scan run", err)
		}
		run.CreatedAt = time.Unix(0, created).UTC()
		run.UpdatedAt = time.Unix(0, updated).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil && !gerrors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrCodeRegistryQuery, "read runs", err)
	}
	return runs, nil
}
