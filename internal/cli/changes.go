package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/harness"
)

// changesBundlePath is where a passing run's file contents are recorded,
// alongside but separate from its diagnostics report: the report is a
// read-everywhere audit artifact, while a changes bundle carries file
// contents and is only ever written for a run that passed.
func changesBundlePath(repoRoot, runID string) string {
	return filepath.Join(repoRoot, diagnostics.ReportDir, runID+".changes.json")
}

func writeChangesBundle(repoRoot, runID string, changes []harness.FileChange) error {
	path := changesBundlePath(repoRoot, runID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating changes bundle directory: %w", err)
	}
	data, err := json.MarshalIndent(changes, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling changes bundle: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func readChangesBundle(repoRoot, runID string) ([]harness.FileChange, error) {
	path := changesBundlePath(repoRoot, runID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading changes bundle for run %s: %w", runID, err)
	}
	var changes []harness.FileChange
	if err := json.Unmarshal(data, &changes); err != nil {
		return nil, fmt.Errorf("parsing changes bundle for run %s: %w", runID, err)
	}
	return changes, nil
}
