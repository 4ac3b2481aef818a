package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Fallback values used by the Get* accessors when a field is omitted.
const (
	DefaultGateThreshold        = 9.0
	DefaultMaxHypotheses        = 100
	DefaultConsistencyThreshold = 0.01
	DefaultPDTrue               = 0.9
	DefaultMaxTreeNodes         = 200000
	DefaultMaxCondition         = 1e12
)

// TuningConfig represents the root configuration for association tuning.
// Every field is optional; omitted fields fall back to the defaults above
// through the Get* accessors.
type TuningConfig struct {
	// Gating
	GateThreshold *float64 `json:"gate_threshold,omitempty"` // Mahalanobis d² cutoff
	MaxCondition  *float64 `json:"max_condition,omitempty"`  // Innovation covariance condition number limit

	// Hypothesis scoring and pruning
	PDTrue               *float64 `json:"pd_true,omitempty"`
	ConsistencyThreshold *float64 `json:"consistency_threshold,omitempty"`
	MaxHypotheses        *int     `json:"max_hypotheses,omitempty"`

	// Search budget
	MaxTreeNodes  *int    `json:"max_tree_nodes,omitempty"` // 0 disables the node budget
	SearchTimeout *string `json:"search_timeout,omitempty"` // duration string like "250ms"; empty disables
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/tracking/mht/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GateThreshold != nil && *c.GateThreshold <= 0 {
		return fmt.Errorf("gate_threshold must be positive, got %f", *c.GateThreshold)
	}

	if c.PDTrue != nil {
		if *c.PDTrue <= 0 || *c.PDTrue >= 1 {
			return fmt.Errorf("pd_true must be strictly between 0 and 1, got %f", *c.PDTrue)
		}
	}

	if c.ConsistencyThreshold != nil {
		if *c.ConsistencyThreshold < 0 || *c.ConsistencyThreshold > 1 {
			return fmt.Errorf("consistency_threshold must be between 0 and 1, got %f", *c.ConsistencyThreshold)
		}
	}

	if c.MaxHypotheses != nil && *c.MaxHypotheses < 1 {
		return fmt.Errorf("max_hypotheses must be at least 1, got %d", *c.MaxHypotheses)
	}

	if c.MaxTreeNodes != nil && *c.MaxTreeNodes < 0 {
		return fmt.Errorf("max_tree_nodes must be non-negative, got %d", *c.MaxTreeNodes)
	}

	if c.MaxCondition != nil && *c.MaxCondition <= 1 {
		return fmt.Errorf("max_condition must be greater than 1, got %g", *c.MaxCondition)
	}

	if c.SearchTimeout != nil && *c.SearchTimeout != "" {
		d, err := time.ParseDuration(*c.SearchTimeout)
		if err != nil {
			return fmt.Errorf("invalid search_timeout '%s': %w", *c.SearchTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("search_timeout must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetGateThreshold returns the gate_threshold value or the default.
func (c *TuningConfig) GetGateThreshold() float64 {
	if c.GateThreshold == nil {
		return DefaultGateThreshold
	}
	return *c.GateThreshold
}

// GetMaxCondition returns the max_condition value or the default.
func (c *TuningConfig) GetMaxCondition() float64 {
	if c.MaxCondition == nil {
		return DefaultMaxCondition
	}
	return *c.MaxCondition
}

// GetPDTrue returns the pd_true value or the default.
func (c *TuningConfig) GetPDTrue() float64 {
	if c.PDTrue == nil {
		return DefaultPDTrue
	}
	return *c.PDTrue
}

// GetConsistencyThreshold returns the consistency_threshold value or the default.
func (c *TuningConfig) GetConsistencyThreshold() float64 {
	if c.ConsistencyThreshold == nil {
		return DefaultConsistencyThreshold
	}
	return *c.ConsistencyThreshold
}

// GetMaxHypotheses returns the max_hypotheses value or the default.
func (c *TuningConfig) GetMaxHypotheses() int {
	if c.MaxHypotheses == nil {
		return DefaultMaxHypotheses
	}
	return *c.MaxHypotheses
}

// GetMaxTreeNodes returns the max_tree_nodes value or the default.
func (c *TuningConfig) GetMaxTreeNodes() int {
	if c.MaxTreeNodes == nil {
		return DefaultMaxTreeNodes
	}
	return *c.MaxTreeNodes
}

// GetSearchTimeout parses and returns the SearchTimeout as a time.Duration.
// Zero means no engine-imposed timeout.
func (c *TuningConfig) GetSearchTimeout() time.Duration {
	if c.SearchTimeout == nil || *c.SearchTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.SearchTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}
