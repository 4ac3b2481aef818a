// Package mht owns per-frame data association for multi-target tracking.
//
// Responsibilities: statistical gating of track/measurement pairs,
// exhaustive (budgeted) enumeration of mutually exclusive association
// hypotheses, softmax consistency scoring, pruning, and per-track
// marginal association probabilities.
// Key types: Engine, Frame, Association, Hypothesis, TrackMarginal.
//
// Dependency rule: the engine is stateless between frames. It never
// updates track state and never decides track confirmation or deletion;
// callers feed the ranked hypotheses or marginals into their own filter
// and lifecycle logic. No SQL/database code is allowed in this package.
package mht
