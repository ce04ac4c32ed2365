// Package storage archives engine runs in SQLite and writes run artifacts to
// disk.
//
// Every run stores the exact batch it consumed next to the result it
// produced, so any archived run can be replayed deterministically. Artifact
// files are written atomically (temporary file, then rename).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/tenderarb/internal/models"
)

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	run_date     TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	saved_at     TEXT NOT NULL,
	ranked       INTEGER NOT NULL,
	skipped      INTEGER NOT NULL,
	batch_json   TEXT NOT NULL,
	result_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_saved_at ON runs(saved_at);
`

// RunInfo describes an archived run.
type RunInfo struct {
	ID          string
	Today       models.Date
	GeneratedAt time.Time
	SavedAt     time.Time
	Ranked      int
	Skipped     int
}

// Archive is the SQLite run archive.
type Archive struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the archive at path. ":memory:" opens a
// private in-memory archive.
func Open(path string, dirPermissions os.FileMode) (*Archive, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), "tenderarb", "runs.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}

	return &Archive{db: db, now: time.Now}, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

// SaveRun stores a run's input batch and result under the result's run id.
func (a *Archive) SaveRun(ctx context.Context, batch *models.Batch, result *models.RunResult) error {
	if result.Summary.RunID == "" {
		return errors.New("run id must not be empty")
	}
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, run_date, generated_at, saved_at, ranked, skipped, batch_json, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Summary.RunID,
		result.Summary.Today.String(),
		result.Summary.GeneratedAt.UTC().Format(time.RFC3339Nano),
		a.now().UTC().Format(time.RFC3339Nano),
		len(result.Deals),
		len(result.Summary.Skipped),
		string(batchJSON),
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.Summary.RunID, err)
	}
	return nil
}

func (a *Archive) loadColumn(ctx context.Context, runID, column string, v any) error {
	var raw string
	err := a.db.QueryRowContext(ctx, `SELECT `+column+` FROM runs WHERE id = ?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal run %s: %w", runID, err)
	}
	return nil
}

// LoadBatch returns the input batch of an archived run.
func (a *Archive) LoadBatch(ctx context.Context, runID string) (*models.Batch, error) {
	var b models.Batch
	if err := a.loadColumn(ctx, runID, "batch_json", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadResult returns the result of an archived run.
func (a *Archive) LoadResult(ctx context.Context, runID string) (*models.RunResult, error) {
	var r models.RunResult
	if err := a.loadColumn(ctx, runID, "result_json", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns up to limit runs, most recently saved first. A limit of
// zero or less returns every run.
func (a *Archive) ListRuns(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, run_date, generated_at, saved_at, ranked, skipped
		FROM runs ORDER BY saved_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var day, generated, saved string
		if err := rows.Scan(&info.ID, &day, &generated, &saved, &info.Ranked, &info.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if info.Today, err = models.ParseISODate(day); err != nil {
			return nil, fmt.Errorf("run %s has invalid date: %w", info.ID, err)
		}
		info.GeneratedAt, _ = time.Parse(time.RFC3339Nano, generated)
		info.SavedAt, _ = time.Parse(time.RFC3339Nano, saved)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Prune deletes all but the keep most recently saved runs and returns the
// number deleted.
func (a *Archive) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("keep must not be negative")
	}
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY saved_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
