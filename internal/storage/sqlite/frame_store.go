package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// FrameRecord is the stored summary of one processed frame.
type FrameRecord struct {
	FrameID string          `json:"frame_id"`
	RunID   string          `json:"run_id"`
	Seq     int             `json:"seq"`   // Position within the run
	Label   string          `json:"label"` // Scenario frame ID
	Stats   mht.SearchStats `json:"stats"`
}

// FrameStore persists frame results.
type FrameStore struct {
	db *sql.DB
}

// NewFrameStore creates a new FrameStore.
func NewFrameStore(db *sql.DB) *FrameStore {
	return &FrameStore{db: db}
}

// Save writes the frame summary, its ranked hypotheses and its marginals
// in one transaction. If rec.FrameID is empty a new UUID is generated.
// rec.Stats is taken from res.
func (s *FrameStore) Save(rec *FrameRecord, res *mht.FrameResult, marginals []mht.TrackMarginal) error {
	if rec.RunID == "" {
		return fmt.Errorf("runID is required to save a frame")
	}
	if res == nil {
		return fmt.Errorf("frame result is required")
	}
	if rec.FrameID == "" {
		rec.FrameID = uuid.New().String()
	}
	rec.Stats = res.Stats

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save frame tx: %w", err)
	}

	st := rec.Stats
	_, err = tx.Exec(`
		INSERT INTO mht_frames (
			frame_id, run_id, seq, label,
			num_tracks, num_measurements, candidates, excluded,
			nodes, leaves, enumerated, survivors,
			truncated, truncation_reason, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.FrameID, rec.RunID, rec.Seq, rec.Label,
		st.Tracks, st.Measurements, st.Candidates, st.Excluded,
		st.Nodes, st.Leaves, st.Enumerated, st.Survivors,
		st.Truncated, nullString(st.TruncationReason), st.Elapsed.Nanoseconds(),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert frame: %w", err)
	}

	for rank, h := range res.Hypotheses {
		assocJSON, err := json.Marshal(h.Associations)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode associations: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO mht_hypotheses (frame_id, rank, log_likelihood, consistency, associations_json)
			VALUES (?, ?, ?, ?, ?)
		`, rec.FrameID, rank, h.LogLikelihood, h.Consistency, string(assocJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert hypothesis: %w", err)
		}
	}

	for _, m := range marginals {
		for _, e := range m.Entries {
			if _, err := tx.Exec(`
				INSERT INTO mht_marginals (frame_id, track_index, measurement_index, probability)
				VALUES (?, ?, ?, ?)
			`, rec.FrameID, m.TrackIndex, e.MeasurementIndex, e.Probability); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert marginal: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save frame tx: %w", err)
	}
	return nil
}

const frameColumns = `
	frame_id, run_id, seq, label,
	num_tracks, num_measurements, candidates, excluded,
	nodes, leaves, enumerated, survivors,
	truncated, truncation_reason, elapsed_ns`

func scanFrame(row rowScanner) (*FrameRecord, error) {
	f := &FrameRecord{}
	var reason sql.NullString
	var elapsedNs int64
	err := row.Scan(
		&f.FrameID, &f.RunID, &f.Seq, &f.Label,
		&f.Stats.Tracks, &f.Stats.Measurements, &f.Stats.Candidates, &f.Stats.Excluded,
		&f.Stats.Nodes, &f.Stats.Leaves, &f.Stats.Enumerated, &f.Stats.Survivors,
		&f.Stats.Truncated, &reason, &elapsedNs,
	)
	if err != nil {
		return nil, err
	}
	if reason.Valid {
		f.Stats.TruncationReason = reason.String
	}
	f.Stats.Elapsed = time.Duration(elapsedNs)
	return f, nil
}

// Get returns one frame summary by ID.
func (s *FrameStore) Get(frameID string) (*FrameRecord, error) {
	row := s.db.QueryRow(`SELECT `+frameColumns+` FROM mht_frames WHERE frame_id = ?`, frameID)
	f, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get frame %s: %w", frameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	return f, nil
}

// ListByRun returns the frames of a run in sequence order.
func (s *FrameStore) ListByRun(runID string) ([]*FrameRecord, error) {
	rows, err := s.db.Query(`SELECT `+frameColumns+` FROM mht_frames WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []*FrameRecord
	for rows.Next() {
		f, err := scanFrame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// Hypotheses returns a frame's stored hypotheses in rank order.
func (s *FrameStore) Hypotheses(frameID string) ([]mht.Hypothesis, error) {
	rows, err := s.db.Query(`
		SELECT log_likelihood, consistency, associations_json
		FROM mht_hypotheses
		WHERE frame_id = ?
		ORDER BY rank
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("list hypotheses: %w", err)
	}
	defer rows.Close()

	var hyps []mht.Hypothesis
	for rows.Next() {
		var h mht.Hypothesis
		var assocJSON string
		if err := rows.Scan(&h.LogLikelihood, &h.Consistency, &assocJSON); err != nil {
			return nil, fmt.Errorf("scan hypothesis: %w", err)
		}
		if err := json.Unmarshal([]byte(assocJSON), &h.Associations); err != nil {
			return nil, fmt.Errorf("decode associations: %w", err)
		}
		hyps = append(hyps, h)
	}
	return hyps, rows.Err()
}

// Marginals returns a frame's stored marginals, one entry per track that
// has any stored mass, in track order.
func (s *FrameStore) Marginals(frameID string) ([]mht.TrackMarginal, error) {
	rows, err := s.db.Query(`
		SELECT track_index, measurement_index, probability
		FROM mht_marginals
		WHERE frame_id = ?
		ORDER BY track_index, measurement_index
	`, frameID)
	if err != nil {
		return nil, fmt.Errorf("list marginals: %w", err)
	}
	defer rows.Close()

	var out []mht.TrackMarginal
	for rows.Next() {
		var track int
		var e mht.MarginalEntry
		if err := rows.Scan(&track, &e.MeasurementIndex, &e.Probability); err != nil {
			return nil, fmt.Errorf("scan marginal: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].TrackIndex != track {
			out = append(out, mht.TrackMarginal{TrackIndex: track})
		}
		last := &out[len(out)-1]
		last.Entries = append(last.Entries, e)
	}
	return out, rows.Err()
}
