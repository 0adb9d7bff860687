package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID has no history entry.
var ErrRunNotFound = errors.New("run not found")

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    idea TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    output_dir TEXT NOT NULL DEFAULT '',
    result TEXT NOT NULL DEFAULT '',
    created_at DATETIME,
    updated_at DATETIME
);
`

// HistoryStore persists one entry per pipeline run.
type HistoryStore interface {
	// Add records a new run in the running state.
	Add(runID, idea string) error
	// UpdateStatus sets the status and output directory of an existing run.
	UpdateStatus(runID string, status models.RunStatus, outputDir string) error
	// SaveResult stores the terminal result of a run, creating the entry if needed.
	SaveResult(result *models.RunResult) error
	Get(runID string) (*models.HistoryEntry, error)
	// Result returns the stored terminal result, or ErrRunNotFound when the
	// run is unknown or has not finished.
	Result(runID string) (*models.RunResult, error)
	// List returns entries newest first.
	List() ([]models.HistoryEntry, error)
	Delete(runID string) error
	Clear() error
	Close() error
}

type sqliteHistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (or creates) the sqlite history database at path.
func NewHistoryStore(path string) (HistoryStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying history schema: %w", err)
	}
	return &sqliteHistoryStore{db: db}, nil
}

func (s *sqliteHistoryStore) Close() error { return s.db.Close() }

func (s *sqliteHistoryStore) Add(runID, idea string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, idea, status, created_at, updated_at) VALUES (?,?,?,?,?)`,
		runID, idea, string(models.RunRunning), now, now,
	)
	if err != nil {
		return fmt.Errorf("adding run %s: %w", runID, err)
	}
	return nil
}

func (s *sqliteHistoryStore) UpdateStatus(runID string, status models.RunStatus, outputDir string) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, output_dir = ?, updated_at = ? WHERE id = ?`,
		string(status), outputDir, time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return requireAffected(res, runID)
}

func (s *sqliteHistoryStore) SaveResult(result *models.RunResult) error {
	if result == nil {
		return fmt.Errorf("saving run result: result is nil")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling run result: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO runs (id, idea, status, output_dir, result, created_at, updated_at) VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, output_dir=excluded.output_dir,
		   result=excluded.result, updated_at=excluded.updated_at`,
		result.RunID, result.Idea, string(result.Status), result.OutputDir, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving result for run %s: %w", result.RunID, err)
	}
	return nil
}

func (s *sqliteHistoryStore) Get(runID string) (*models.HistoryEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, idea, status, output_dir, created_at, updated_at FROM runs WHERE id = ?`, runID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return entry, nil
}

func (s *sqliteHistoryStore) Result(runID string) (*models.RunResult, error) {
	var data string
	err := s.db.QueryRow(`SELECT result FROM runs WHERE id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && data == "") {
		return nil, fmt.Errorf("loading result for run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading result for run %s: %w", runID, err)
	}

	var result models.RunResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decoding result for run %s: %w", runID, err)
	}
	return &result, nil
}

func (s *sqliteHistoryStore) List() ([]models.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, idea, status, output_dir, created_at, updated_at FROM runs ORDER BY rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *sqliteHistoryStore) Delete(runID string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	return requireAffected(res, runID)
}

func (s *sqliteHistoryStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var status string
	if err := row.Scan(&entry.RunID, &entry.Idea, &status, &entry.OutputDir, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Status = models.RunStatus(status)
	return &entry, nil
}

func requireAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows for run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
