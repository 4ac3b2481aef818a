package mht

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/hypotrack/internal/config"
)

var validate = validator.New()

// Config holds the immutable engine parameters.
type Config struct {
	GateThreshold        float64       `validate:"gt=0"`        // Mahalanobis d² cutoff (chi-square style)
	MaxHypotheses        int           `validate:"gte=1"`       // Cap on hypotheses surviving the pruner
	ConsistencyThreshold float64       `validate:"gte=0,lte=1"` // Minimum softmax weight to survive pruning
	PDTrue               float64       `validate:"gt=0,lt=1"`   // Detection probability, constant across tracks
	MaxTreeNodes         int           `validate:"gte=0"`       // Construction budget; 0 disables it
	SearchTimeout        time.Duration `validate:"gte=0"`       // Per-call deadline; 0 disables it
	MaxCondition         float64       `validate:"gt=1"`        // Innovation covariance condition limit
}

// DefaultConfig returns engine configuration with the built-in defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		GateThreshold:        cfg.GetGateThreshold(),
		MaxHypotheses:        cfg.GetMaxHypotheses(),
		ConsistencyThreshold: cfg.GetConsistencyThreshold(),
		PDTrue:               cfg.GetPDTrue(),
		MaxTreeNodes:         cfg.GetMaxTreeNodes(),
		SearchTimeout:        cfg.GetSearchTimeout(),
		MaxCondition:         cfg.GetMaxCondition(),
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}
	return nil
}

// PDFalse is the missed-detection probability 1 − PDTrue.
func (c Config) PDFalse() float64 {
	return 1 - c.PDTrue
}

func (c Config) logPDTrue() float64  { return math.Log(c.PDTrue) }
func (c Config) logPDFalse() float64 { return math.Log(c.PDFalse()) }
