package mht

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/hypotrack/internal/timeutil"
)

// DebugCollector receives per-frame association internals. The
// tracking/debug package provides the standard implementation.
type DebugCollector interface {
	IsEnabled() bool
	RecordGate(track, measurement int, distSquared float64, outcome GateOutcome)
	RecordSearch(stats SearchStats)
}

// MetricsRecorder receives one observation per ProcessFrame call.
type MetricsRecorder interface {
	ObserveFrame(stats SearchStats)
}

// Engine runs gating, hypothesis enumeration, scoring, pruning and
// marginalisation for one frame at a time. It only holds immutable
// configuration and may be shared by goroutines, provided any attached
// DebugCollector is safe for that use.
type Engine struct {
	cfg     Config
	debug   DebugCollector
	metrics MetricsRecorder
	clock   timeutil.Clock
}

// Option customises an Engine.
type Option func(*Engine)

// WithDebugCollector attaches a collector for gating and search records.
func WithDebugCollector(c DebugCollector) Option {
	return func(e *Engine) { e.debug = c }
}

// WithMetrics attaches a per-frame metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces the clock used for SearchStats.Elapsed. Deadlines
// from ctx and SearchTimeout always use wall time.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate validates the frame and returns its gated candidate
// associations and the number of pairs excluded as singular.
func (e *Engine) Generate(f Frame) ([]Association, int, error) {
	if _, err := validateFrame(f); err != nil {
		return nil, 0, err
	}
	cands, excluded := e.generate(f)
	return cands, excluded, nil
}

// ProcessFrame runs the full association pass for one frame and returns
// the pruned hypotheses ranked by descending log-likelihood.
//
// Shape errors are returned before any computation. With zero tracks the
// hypothesis set is empty; with zero measurements it holds the single
// all-missed hypothesis.
//
// ConsistencyThreshold applies to the softmax weight, so a complete
// search over many near-equal hypotheses can prune every one of them;
// the result then has no hypotheses and Best returns nil.
//
// When MaxTreeNodes, SearchTimeout or ctx stops tree construction early,
// the returned result is still valid and the error wraps
// ErrSearchTruncated. A truncated result always holds the maximum a
// posteriori hypothesis: if pruning removed it, it is restored at rank 0.
func (e *Engine) ProcessFrame(ctx context.Context, f Frame) (*FrameResult, error) {
	start := e.clock.Now()
	if _, err := validateFrame(f); err != nil {
		return nil, err
	}
	if e.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SearchTimeout)
		defer cancel()
	}

	res := &FrameResult{
		Stats: SearchStats{Tracks: len(f.Tracks), Measurements: len(f.Measurements)},
	}
	if len(f.Tracks) == 0 {
		res.Hypotheses = []Hypothesis{}
		e.finish(res, start)
		return res, nil
	}

	cands, excluded := e.generate(f)
	res.Candidates = cands
	res.Stats.Candidates = len(cands)
	res.Stats.Excluded = excluded

	sc := newSearchContext(cands, len(f.Tracks), e.cfg)
	tree, reason := buildTree(ctx, sc)
	hyps := tree.extract()
	res.Stats.Nodes = len(tree.nodes)
	res.Stats.Leaves = len(tree.leaves)

	var best *Hypothesis
	if reason != "" {
		res.Stats.Truncated = true
		res.Stats.TruncationReason = reason
		hyps, best = e.withBestHypothesis(hyps, cands, len(f.Tracks), len(f.Measurements))
	}
	res.Stats.Enumerated = len(hyps)

	scoreConsistency(hyps)
	var scoredBest Hypothesis
	if best != nil {
		// pruneHypotheses reuses hyps' backing array, so copy first.
		scoredBest = *findAssignment(hyps, best)
	}
	res.Hypotheses = pruneHypotheses(hyps, e.cfg.ConsistencyThreshold, e.cfg.MaxHypotheses)
	if best != nil && findAssignment(res.Hypotheses, &scoredBest) == nil {
		res.Hypotheses = restoreBest(res.Hypotheses, scoredBest, e.cfg.MaxHypotheses)
	}
	res.Stats.Survivors = len(res.Hypotheses)
	e.finish(res, start)

	if res.Stats.Truncated {
		opsf("search truncated (%s) after %d nodes, %d leaves; %d tracks, %d candidates",
			reason, res.Stats.Nodes, res.Stats.Leaves, res.Stats.Tracks, res.Stats.Candidates)
		return res, fmt.Errorf("%w: %s after %d nodes", ErrSearchTruncated, reason, res.Stats.Nodes)
	}
	return res, nil
}

// withBestHypothesis appends the MAP hypothesis when a truncated search
// did not reach it. The returned pointer identifies the MAP assignment,
// or is nil when the solver failed.
func (e *Engine) withBestHypothesis(hyps []Hypothesis, cands []Association, numTracks, numMeasurements int) ([]Hypothesis, *Hypothesis) {
	best, err := e.BestHypothesis(cands, numTracks, numMeasurements)
	if err != nil {
		opsf("best hypothesis fallback failed: %v", err)
		return hyps, nil
	}
	if findAssignment(hyps, &best) == nil {
		hyps = append(hyps, best)
	}
	return hyps, &best
}

// findAssignment returns the element of hyps with the same assignment as
// target, or nil.
func findAssignment(hyps []Hypothesis, target *Hypothesis) *Hypothesis {
	for i := range hyps {
		if hyps[i].sameAssignment(target) {
			return &hyps[i]
		}
	}
	return nil
}

// restoreBest puts best back at rank 0 of a pruned set, keeping at most
// maxHypotheses entries.
func restoreBest(pruned []Hypothesis, best Hypothesis, maxHypotheses int) []Hypothesis {
	out := make([]Hypothesis, 0, len(pruned)+1)
	out = append(out, best)
	out = append(out, pruned...)
	if maxHypotheses > 0 && len(out) > maxHypotheses {
		out = out[:maxHypotheses]
	}
	return out
}

func (e *Engine) finish(res *FrameResult, start time.Time) {
	res.Stats.Elapsed = e.clock.Since(start)
	diagf("frame: tracks=%d measurements=%d candidates=%d excluded=%d nodes=%d leaves=%d survivors=%d elapsed=%s",
		res.Stats.Tracks, res.Stats.Measurements, res.Stats.Candidates, res.Stats.Excluded,
		res.Stats.Nodes, res.Stats.Leaves, res.Stats.Survivors, res.Stats.Elapsed)
	if e.debug != nil && e.debug.IsEnabled() {
		e.debug.RecordSearch(res.Stats)
	}
	if e.metrics != nil {
		e.metrics.ObserveFrame(res.Stats)
	}
}
