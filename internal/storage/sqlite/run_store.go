package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Run is one replay of a scenario through the engine.
type Run struct {
	RunID        string `json:"run_id"`
	ScenarioName string `json:"scenario_name"`
	ConfigJSON   string `json:"config_json"` // Engine configuration used for the run
	StartedAt    int64  `json:"started_at"`  // Unix nanoseconds
	FinishedAt   *int64 `json:"finished_at,omitempty"`
	FrameCount   int    `json:"frame_count"`
	Notes        string `json:"notes,omitempty"`
}

// RunStore provides persistence for replay runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert creates a run. If run.RunID is empty a new UUID is generated;
// a zero StartedAt is set to the current time.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().UnixNano()
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}

	_, err := s.db.Exec(`
		INSERT INTO mht_runs (run_id, scenario_name, config_json, started_at, frame_count, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.ScenarioName, run.ConfigJSON, run.StartedAt, run.FrameCount, nullString(run.Notes))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish stamps the run's completion time and frame count.
func (s *RunStore) Finish(runID string, frameCount int) error {
	res, err := s.db.Exec(`
		UPDATE mht_runs SET finished_at = ?, frame_count = ? WHERE run_id = ?
	`, time.Now().UnixNano(), frameCount, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// Get returns a run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, scenario_name, config_json, started_at, finished_at, frame_count, notes
		FROM mht_runs WHERE run_id = ?
	`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// List returns all runs, newest first.
func (s *RunStore) List() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, scenario_name, config_json, started_at, finished_at, frame_count, notes
		FROM mht_runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run together with its frames, hypotheses and marginals.
func (s *RunStore) Delete(runID string) error {
	if _, err := s.db.Exec(`DELETE FROM mht_runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	r := &Run{}
	var finishedAt sql.NullInt64
	var notes sql.NullString
	if err := row.Scan(&r.RunID, &r.ScenarioName, &r.ConfigJSON, &r.StartedAt, &finishedAt, &r.FrameCount, &notes); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Int64
	}
	if notes.Valid {
		r.Notes = notes.String
	}
	return r, nil
}
