package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Models.Speed == "" {
		t.Error("expected a default speed model")
	}
	if cfg.Harness.MaxAttempts != 3 {
		t.Errorf("expected max_attempts 3, got %d", cfg.Harness.MaxAttempts)
	}
	if cfg.Harness.QuickChecksMode != QuickChecksStrictAuto {
		t.Errorf("expected strict_auto quick checks mode, got %s", cfg.Harness.QuickChecksMode)
	}
}

func TestPresetLabStrictIsStricter(t *testing.T) {
	lab := LabStrict()
	interactive := InteractiveStrict()

	if !lab.RequireQuickCheckDetectable {
		t.Error("expected lab_strict to require detectable quick-checks")
	}
	if interactive.RequireQuickCheckDetectable {
		t.Error("expected interactive_strict to not require detectable quick-checks")
	}
	if lab.MaxTotalCostUSD <= interactive.MaxTotalCostUSD {
		t.Error("expected lab_strict to allow a larger cost budget")
	}
}

func TestPresetUnknownFallsBackToInteractive(t *testing.T) {
	got := Preset("nonexistent")
	want := InteractiveStrict()
	if got.MaxAttempts != want.MaxAttempts || got.MaxTotalMs != want.MaxTotalMs {
		t.Error("expected unknown preset name to fall back to interactive_strict")
	}
}

func TestLoadJSONC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.jsonc")

	content := []byte(`{
  // This is a JSONC comment
  "models": {
    "speed": "test-model"
  }
}`)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	m, err := loadJSONC(path)
	if err != nil {
		t.Fatalf("loadJSONC failed: %v", err)
	}

	models, ok := m["models"].(map[string]any)
	if !ok {
		t.Fatal("expected models to be a map")
	}
	if models["speed"] != "test-model" {
		t.Errorf("expected speed=test-model, got %v", models["speed"])
	}
}

func TestLoadJSONC_FileNotFound(t *testing.T) {
	_, err := loadJSONC("/nonexistent/path/config.jsonc")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadJSONC_MalformedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonc")

	if err := os.WriteFile(path, []byte(`{"models": {"speed": "test"`), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	_, err := loadJSONC(path)
	if err == nil {
		t.Error("expected error for malformed JSONC")
	}
}

func TestMergeIntoConfig(t *testing.T) {
	cfg := DefaultConfig()

	src := map[string]any{
		"models": map[string]any{
			"speed": "override-model",
		},
		"harness": map[string]any{
			"max_attempts": json.Number("7"),
		},
	}

	if err := mergeIntoConfig(&cfg, src); err != nil {
		t.Fatalf("mergeIntoConfig failed: %v", err)
	}

	if cfg.Models.Speed != "override-model" {
		t.Errorf("expected speed=override-model, got %s", cfg.Models.Speed)
	}
	if cfg.Harness.MaxAttempts != 7 {
		t.Errorf("expected max_attempts=7, got %d", cfg.Harness.MaxAttempts)
	}
	// Untouched field should survive the merge.
	if cfg.Models.Smart == "" {
		t.Error("expected smart model to remain set")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("COPILOT_TOKEN", "test-token-123")
	t.Setenv("COSMOS_HARNESS_PRESET", "lab_strict")

	applyEnvOverrides(&cfg)

	if cfg.Copilot.Token != "test-token-123" {
		t.Errorf("expected copilot token=test-token-123, got %s", cfg.Copilot.Token)
	}
	if !cfg.Harness.RequireQuickCheckDetectable {
		t.Error("expected COSMOS_HARNESS_PRESET=lab_strict to switch to the lab_strict preset")
	}
}

func TestMergeDeepPreservesNestedFields(t *testing.T) {
	cfg := DefaultConfig()

	src := map[string]any{
		"models": map[string]any{
			"speed": "override-model",
		},
	}
	if err := mergeIntoConfig(&cfg, src); err != nil {
		t.Fatalf("mergeIntoConfig failed: %v", err)
	}

	if cfg.Models.Speed != "override-model" {
		t.Errorf("expected speed=override-model, got %s", cfg.Models.Speed)
	}
	if cfg.Harness.MaxAttempts != 3 {
		t.Errorf("expected harness.max_attempts preserved as 3, got %d", cfg.Harness.MaxAttempts)
	}
}
