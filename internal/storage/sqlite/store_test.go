package sqlite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/hypotrack/internal/testutil"
	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

func testFrameResult(t *testing.T) (*mht.Engine, *mht.FrameResult, []mht.TrackMarginal) {
	t.Helper()
	e := testutil.NewEngine(t)
	res, marginals := testutil.Process(t, e, testutil.TwoTrackFrame())
	return e, res, marginals
}

func TestRunStore_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	run := &Run{ScenarioName: "crossing", ConfigJSON: `{"gate_threshold":9}`, Notes: "baseline"}
	require.NoError(t, store.Insert(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.StartedAt)

	got, err := store.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Nil(t, got.FinishedAt)

	require.NoError(t, store.Finish(run.RunID, 12))
	got, err = store.Get(run.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, 12, got.FrameCount)

	assert.ErrorIs(t, store.Finish("missing", 1), ErrNotFound)
	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	store := NewRunStore(db.DB)

	require.NoError(t, store.Insert(&Run{ScenarioName: "old", StartedAt: 100}))
	require.NoError(t, store.Insert(&Run{ScenarioName: "new", StartedAt: 200}))

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ScenarioName)
	assert.Equal(t, "{}", runs[0].ConfigJSON)
}

func TestFrameStore_SaveRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunStore(db.DB)
	frames := NewFrameStore(db.DB)

	run := &Run{ScenarioName: "roundtrip"}
	require.NoError(t, runs.Insert(run))

	_, res, marginals := testFrameResult(t)
	rec := &FrameRecord{RunID: run.RunID, Seq: 0, Label: "t000"}
	require.NoError(t, frames.Save(rec, res, marginals))
	assert.NotEmpty(t, rec.FrameID)

	list, err := frames.ListByRun(run.RunID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	if diff := cmp.Diff(rec, list[0]); diff != "" {
		t.Errorf("frame record mismatch (-saved +loaded):\n%s", diff)
	}

	got, err := frames.Get(rec.FrameID)
	require.NoError(t, err)
	assert.Equal(t, "t000", got.Label)

	hyps, err := frames.Hypotheses(rec.FrameID)
	require.NoError(t, err)
	if diff := cmp.Diff(res.Hypotheses, hyps, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("hypotheses mismatch (-saved +loaded):\n%s", diff)
	}

	loaded, err := frames.Marginals(rec.FrameID)
	require.NoError(t, err)
	if diff := cmp.Diff(marginals, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("marginals mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestFrameStore_DeleteRunCascades(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunStore(db.DB)
	frames := NewFrameStore(db.DB)

	run := &Run{ScenarioName: "cascade"}
	require.NoError(t, runs.Insert(run))
	_, res, marginals := testFrameResult(t)
	rec := &FrameRecord{RunID: run.RunID, Label: "t000"}
	require.NoError(t, frames.Save(rec, res, marginals))

	require.NoError(t, runs.Delete(run.RunID))

	_, err := frames.Get(rec.FrameID)
	assert.ErrorIs(t, err, ErrNotFound)
	hyps, err := frames.Hypotheses(rec.FrameID)
	require.NoError(t, err)
	assert.Empty(t, hyps)
}

func TestFrameStore_SaveErrors(t *testing.T) {
	db := setupTestDB(t)
	frames := NewFrameStore(db.DB)
	_, res, _ := testFrameResult(t)

	assert.Error(t, frames.Save(&FrameRecord{Label: "x"}, res, nil), "run ID required")
	assert.Error(t, frames.Save(&FrameRecord{RunID: "r"}, nil, nil), "result required")
	assert.Error(t, frames.Save(&FrameRecord{RunID: "no-such-run"}, res, nil), "foreign key enforced")

	// A failed save leaves nothing behind.
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM mht_hypotheses`).Scan(&n))
	assert.Zero(t, n)
}

func TestFrameStore_DuplicateSeqRejected(t *testing.T) {
	db := setupTestDB(t)
	runs := NewRunStore(db.DB)
	frames := NewFrameStore(db.DB)

	run := &Run{ScenarioName: "dup"}
	require.NoError(t, runs.Insert(run))
	_, res, _ := testFrameResult(t)

	require.NoError(t, frames.Save(&FrameRecord{RunID: run.RunID, Seq: 3, Label: "a"}, res, nil))
	assert.Error(t, frames.Save(&FrameRecord{RunID: run.RunID, Seq: 3, Label: "b"}, res, nil))
}
