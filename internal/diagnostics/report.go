package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long the report writer waits for the
// advisory lock on the run report before giving up.
const DefaultLockTimeout = 5 * time.Second

// ReportDir is the repo-relative directory holding per-run JSON reports.
const ReportDir = ".cosmos/apply_harness"

// TelemetryPath is the repo-relative JSONL telemetry file.
const TelemetryPath = ".cosmos/implementation_harness.jsonl"

// ReportPath returns the path a run's report is written to.
func ReportPath(repoRoot, runID string) string {
	return filepath.Join(repoRoot, ReportDir, runID+".json")
}

// withLock acquires an exclusive lock on path+".lock", runs fn, then
// releases — the same file-scoped locking idiom used for every on-disk
// record the harness writes, so concurrent runs touching distinct run_ids
// never contend and a single run_id is never corrupted by a racing writer.
func withLock(path string, timeout time.Duration, fn func() error) error {
	lockPath := path + ".lock"
	fileLock := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring lock on %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("timed out acquiring lock on %s", lockPath)
	}
	defer fileLock.Unlock()

	return fn()
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteReport writes run as pretty JSON to its report path, creating parent
// directories as needed.
func WriteReport(repoRoot string, run *RunDiagnostics) (string, error) {
	path := ReportPath(repoRoot, run.RunID)
	run.ReportPath = path

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling run report: %w", err)
	}

	err = withLock(path, DefaultLockTimeout, func() error {
		return atomicWriteFile(path, data, 0644)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// ReadReport reads and parses a previously written run report.
func ReadReport(path string) (*RunDiagnostics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var run RunDiagnostics
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &run, nil
}
