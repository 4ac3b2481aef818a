// Package scenario loads offline association scenarios: a named sequence
// of frames, each holding predicted tracks and measurements, written as
// JSON or YAML. Scenarios drive the replay CLI and regression tests.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every parse or validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// Format selects the scenario encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const maxScenarioSize = 16 * 1024 * 1024 // 16MB

var validate = validator.New()

// Matrix is a row-major matrix literal.
type Matrix [][]float64

// Scenario is a named sequence of frames.
type Scenario struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// MeasurementModel is used by tracks that do not set their own.
	MeasurementModel Matrix `json:"measurement_model,omitempty" yaml:"measurement_model,omitempty"`

	Frames []FrameSpec `json:"frames" yaml:"frames" validate:"required,min=1,dive"`
}

// FrameSpec is one frame of a scenario.
type FrameSpec struct {
	ID           string            `json:"id" yaml:"id" validate:"required"`
	Tracks       []TrackSpec       `json:"tracks" yaml:"tracks" validate:"dive"`
	Measurements []MeasurementSpec `json:"measurements" yaml:"measurements" validate:"dive"`
}

// TrackSpec describes a predicted track. Exactly one of Covariance and
// CovarianceDiag is required.
type TrackSpec struct {
	State            []float64 `json:"state" yaml:"state" validate:"required,min=1"`
	Covariance       Matrix    `json:"covariance,omitempty" yaml:"covariance,omitempty" validate:"required_without=CovarianceDiag,excluded_with=CovarianceDiag"`
	CovarianceDiag   []float64 `json:"covariance_diag,omitempty" yaml:"covariance_diag,omitempty" validate:"omitempty,dive,gte=0"`
	MeasurementModel Matrix    `json:"measurement_model,omitempty" yaml:"measurement_model,omitempty"`
}

// MeasurementSpec describes one observation. Exactly one of Covariance
// and CovarianceDiag is required.
type MeasurementSpec struct {
	Value          []float64 `json:"value" yaml:"value" validate:"required,min=1"`
	Covariance     Matrix    `json:"covariance,omitempty" yaml:"covariance,omitempty" validate:"required_without=CovarianceDiag,excluded_with=CovarianceDiag"`
	CovarianceDiag []float64 `json:"covariance_diag,omitempty" yaml:"covariance_diag,omitempty" validate:"omitempty,dive,gte=0"`
}

// Load reads a scenario file. The format follows the extension: .json,
// .yaml or .yml.
func Load(path string) (*Scenario, error) {
	cleanPath := filepath.Clean(path)

	var format Format
	switch ext := strings.ToLower(filepath.Ext(cleanPath)); ext {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, fmt.Errorf("scenario file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario file: %w", err)
	}
	if fileInfo.Size() > maxScenarioSize {
		return nil, fmt.Errorf("scenario file too large: %d bytes (max %d)", fileInfo.Size(), maxScenarioSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data, format)
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Scenario, error) {
	var s Scenario
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("%w: JSON decode failed: %w", ErrInvalidScenario, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("%w: YAML decode failed: %w", ErrInvalidScenario, err)
		}
	default:
		return nil, fmt.Errorf("unknown scenario format %q", format)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate runs struct validation followed by semantic checks: frame IDs
// are unique and every matrix literal is rectangular.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if err := s.MeasurementModel.check("measurement_model"); err != nil {
		return err
	}
	seen := make(map[string]int, len(s.Frames))
	for i, f := range s.Frames {
		if prev, ok := seen[f.ID]; ok {
			return fmt.Errorf("%w: duplicate frame id %q at frames[%d] and frames[%d]", ErrInvalidScenario, f.ID, prev, i)
		}
		seen[f.ID] = i

		for j, tr := range f.Tracks {
			if len(tr.MeasurementModel) == 0 && len(s.MeasurementModel) == 0 {
				return fmt.Errorf("%w: frames[%d].tracks[%d]: no measurement_model and no scenario default", ErrInvalidScenario, i, j)
			}
			if err := tr.Covariance.check(fmt.Sprintf("frames[%d].tracks[%d].covariance", i, j)); err != nil {
				return err
			}
			if err := tr.MeasurementModel.check(fmt.Sprintf("frames[%d].tracks[%d].measurement_model", i, j)); err != nil {
				return err
			}
		}
		for j, m := range f.Measurements {
			if err := m.Covariance.check(fmt.Sprintf("frames[%d].measurements[%d].covariance", i, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m Matrix) check(field string) error {
	if len(m) == 0 {
		return nil
	}
	cols := len(m[0])
	if cols == 0 {
		return fmt.Errorf("%w: %s: empty row", ErrInvalidScenario, field)
	}
	for r, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: %s: row %d has %d columns, want %d", ErrInvalidScenario, field, r, len(row), cols)
		}
	}
	return nil
}
