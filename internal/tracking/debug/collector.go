// Package debug provides instrumentation for the association engine.
// The Collector captures per-frame internals (gating decisions and search
// statistics) for replay reports and tuning.
package debug

import (
	"math"
	"sync"

	"github.com/banshee-data/hypotrack/internal/tracking/mht"
)

// Pre-allocation capacity for gate records: ~10-20 tracks against a
// similar number of measurements, most of them rejected cheaply.
const defaultGateCapacity = 64

// Collector accumulates debug artifacts during a single frame's processing.
// It implements mht.DebugCollector.
//
// The collector is stateful: call BeginFrame before ProcessFrame, then
// Emit at frame completion to extract the artifacts. Reset discards a
// frame without emitting it. Record calls are serialised by a mutex so a
// collector may be attached to an engine shared across goroutines,
// although records from concurrent frames interleave.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	current *Frame
}

// Frame contains all debug artifacts for a single frame.
type Frame struct {
	FrameID string `json:"frame_id"`

	// Every evaluated track/measurement pair, in evaluation order.
	Gates []GateRecord `json:"gates"`

	// Search summary; nil until the engine finishes the frame.
	Search *mht.SearchStats `json:"search,omitempty"`
}

// GateRecord captures a single track/measurement evaluation.
type GateRecord struct {
	TrackIndex       int             `json:"track_index"`
	MeasurementIndex int             `json:"measurement_index"`
	DistanceSquared  float64         `json:"distance_squared"` // Zero when singular
	Outcome          mht.GateOutcome `json:"outcome"`
}

var _ mht.DebugCollector = (*Collector)(nil)

// NewCollector creates a collector that's initially disabled.
func NewCollector() *Collector {
	return &Collector{}
}

// SetEnabled controls whether the collector records artifacts.
// When disabled, all Record calls are no-ops.
func (c *Collector) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns true if the collector is actively recording.
func (c *Collector) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// BeginFrame initialises collection for a new frame.
// Must be called before the engine processes the frame.
func (c *Collector) BeginFrame(frameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.current = &Frame{
		FrameID: frameID,
		Gates:   make([]GateRecord, 0, defaultGateCapacity),
	}
}

// RecordGate captures one gating decision.
func (c *Collector) RecordGate(track, measurement int, distSquared float64, outcome mht.GateOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.current == nil {
		return
	}
	if math.IsNaN(distSquared) || math.IsInf(distSquared, 0) {
		distSquared = 0
	}
	c.current.Gates = append(c.current.Gates, GateRecord{
		TrackIndex:       track,
		MeasurementIndex: measurement,
		DistanceSquared:  distSquared,
		Outcome:          outcome,
	})
}

// RecordSearch captures the frame's search statistics.
func (c *Collector) RecordSearch(stats mht.SearchStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.current == nil {
		return
	}
	s := stats
	c.current.Search = &s
}

// Emit returns the accumulated frame and prepares for the next one.
// Returns nil if collection is disabled or no frame was begun.
func (c *Collector) Emit() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.current == nil {
		return nil
	}
	frame := c.current
	c.current = nil // Caller must BeginFrame again
	return frame
}

// Reset clears any pending artifacts without emitting them.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Counts tallies gate records by outcome.
func (f *Frame) Counts() map[mht.GateOutcome]int {
	out := make(map[mht.GateOutcome]int, 3)
	if f == nil {
		return out
	}
	for _, g := range f.Gates {
		out[g.Outcome]++
	}
	return out
}
