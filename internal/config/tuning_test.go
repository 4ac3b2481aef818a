package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetGateThreshold() != 9.0 {
		t.Errorf("GetGateThreshold() = %f, want 9.0", cfg.GetGateThreshold())
	}
	if cfg.GetPDTrue() != 0.9 {
		t.Errorf("GetPDTrue() = %f, want 0.9", cfg.GetPDTrue())
	}
	if cfg.GetConsistencyThreshold() != 0.01 {
		t.Errorf("GetConsistencyThreshold() = %f, want 0.01", cfg.GetConsistencyThreshold())
	}
	if cfg.GetMaxHypotheses() != 100 {
		t.Errorf("GetMaxHypotheses() = %d, want 100", cfg.GetMaxHypotheses())
	}
	if cfg.GetMaxTreeNodes() != DefaultMaxTreeNodes {
		t.Errorf("GetMaxTreeNodes() = %d, want %d", cfg.GetMaxTreeNodes(), DefaultMaxTreeNodes)
	}
	if cfg.GetSearchTimeout() != 0 {
		t.Errorf("GetSearchTimeout() = %v, want 0", cfg.GetSearchTimeout())
	}
	if cfg.GetMaxCondition() != 1e12 {
		t.Errorf("GetMaxCondition() = %g, want 1e12", cfg.GetMaxCondition())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "gate_threshold": 16.0,
  "pd_true": 0.8,
  "consistency_threshold": 0.05,
  "max_hypotheses": 25,
  "max_tree_nodes": 5000,
  "search_timeout": "250ms"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetGateThreshold() != 16.0 {
		t.Errorf("GetGateThreshold() = %f, want 16.0", cfg.GetGateThreshold())
	}
	if cfg.GetPDTrue() != 0.8 {
		t.Errorf("GetPDTrue() = %f, want 0.8", cfg.GetPDTrue())
	}
	if cfg.GetConsistencyThreshold() != 0.05 {
		t.Errorf("GetConsistencyThreshold() = %f, want 0.05", cfg.GetConsistencyThreshold())
	}
	if cfg.GetMaxHypotheses() != 25 {
		t.Errorf("GetMaxHypotheses() = %d, want 25", cfg.GetMaxHypotheses())
	}
	if cfg.GetMaxTreeNodes() != 5000 {
		t.Errorf("GetMaxTreeNodes() = %d, want 5000", cfg.GetMaxTreeNodes())
	}
	if cfg.GetSearchTimeout() != 250*time.Millisecond {
		t.Errorf("GetSearchTimeout() = %v, want 250ms", cfg.GetSearchTimeout())
	}
	// Omitted field keeps its default.
	if cfg.GetMaxCondition() != DefaultMaxCondition {
		t.Errorf("GetMaxCondition() = %g, want default", cfg.GetMaxCondition())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{"wrong extension", "config.yaml", `{}`},
		{"malformed json", "bad.json", `{"gate_threshold": `},
		{"negative gate", "gate.json", `{"gate_threshold": -1}`},
		{"pd_true of one", "pd.json", `{"pd_true": 1.0}`},
		{"zero max hypotheses", "maxhyp.json", `{"max_hypotheses": 0}`},
		{"bad timeout", "timeout.json", `{"search_timeout": "soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.filename)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}

	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty", TuningConfig{}, false},
		{"valid values", TuningConfig{GateThreshold: ptrFloat64(4), PDTrue: ptrFloat64(0.5), MaxHypotheses: ptrInt(1)}, false},
		{"consistency above one", TuningConfig{ConsistencyThreshold: ptrFloat64(1.5)}, true},
		{"negative node budget", TuningConfig{MaxTreeNodes: ptrInt(-1)}, true},
		{"unbounded node budget", TuningConfig{MaxTreeNodes: ptrInt(0)}, false},
		{"condition too small", TuningConfig{MaxCondition: ptrFloat64(1)}, true},
		{"negative timeout", TuningConfig{SearchTimeout: ptrString("-5ms")}, true},
		{"empty timeout", TuningConfig{SearchTimeout: ptrString("")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetGateThreshold() != DefaultGateThreshold {
		t.Errorf("defaults file gate_threshold = %f, want %f", cfg.GetGateThreshold(), DefaultGateThreshold)
	}
	if cfg.GetPDTrue() != DefaultPDTrue {
		t.Errorf("defaults file pd_true = %f, want %f", cfg.GetPDTrue(), DefaultPDTrue)
	}
	if cfg.GetMaxHypotheses() != DefaultMaxHypotheses {
		t.Errorf("defaults file max_hypotheses = %d, want %d", cfg.GetMaxHypotheses(), DefaultMaxHypotheses)
	}
}
