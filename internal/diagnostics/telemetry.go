package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TelemetrySchemaVersion is bumped whenever the JSONL row shape changes.
const TelemetrySchemaVersion = 1

// TelemetryRow is one compact JSONL telemetry record, appended after the
// report write.
type TelemetryRow struct {
	SchemaVersion               int     `json:"schema_version"`
	Timestamp                   string  `json:"timestamp"`
	RunID                       string  `json:"run_id"`
	SuggestionID                string  `json:"suggestion_id"`
	Passed                      bool    `json:"passed"`
	AttemptCount                int     `json:"attempt_count"`
	TotalMs                     int64   `json:"total_ms"`
	TotalCostUSD                float64 `json:"total_cost_usd"`
	QuickCheckFinalStatus       string  `json:"quick_check_final_status"`
	FinalizationStatus          string  `json:"finalization_status,omitempty"`
	IndependentReviewExecuted   bool    `json:"independent_review_executed"`
	SchemaFallbackCount         int     `json:"schema_fallback_count"`
	SmartEscalationCount        int     `json:"smart_escalation_count"`
	BaselineQuickCheckFailFast  int     `json:"baseline_quick_check_fail_fast_count"`
}

// AppendTelemetry appends row as one JSON line to repoRoot/.cosmos/implementation_harness.jsonl.
// Concurrent runs interleave but never corrupt each other because every
// append is a single open-write-close of one self-contained JSON object.
func AppendTelemetry(repoRoot string, row TelemetryRow) error {
	row.SchemaVersion = TelemetrySchemaVersion
	if row.Timestamp == "" {
		row.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	path := filepath.Join(repoRoot, TelemetryPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating telemetry directory: %w", err)
	}

	line, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshaling telemetry row: %w", err)
	}
	line = append(line, '\n')

	return withLock(path, DefaultLockTimeout, func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("opening telemetry file: %w", err)
		}
		defer f.Close()
		_, err = f.Write(line)
		return err
	})
}

// RowFromRun derives a TelemetryRow from a completed RunDiagnostics.
func RowFromRun(run *RunDiagnostics) TelemetryRow {
	row := TelemetryRow{
		RunID:         run.RunID,
		SuggestionID:  run.SuggestionID,
		Passed:        run.Passed,
		AttemptCount:  run.AttemptCount,
		TotalMs:       run.TotalMs,
		TotalCostUSD:  run.TotalCostUSD,
	}
	if run.Finalization != nil {
		row.FinalizationStatus = string(run.Finalization.Status)
	}
	lastQC := QuickCheckUnavailable
	for _, a := range run.Attempts {
		if a.QuickCheckStatus != "" {
			lastQC = a.QuickCheckStatus
		}
		for _, c := range a.LLMCalls {
			if c.Kind == CallIndependentReview {
				row.IndependentReviewExecuted = true
			}
			if c.SchemaFallbackUsed {
				row.SchemaFallbackCount++
			}
			if c.EscalationReason != "" {
				row.SmartEscalationCount++
			}
		}
		if a.HasNote("baseline_quick_check_fail_fast") {
			row.BaselineQuickCheckFailFast++
		}
	}
	row.QuickCheckFinalStatus = string(lastQC)
	return row
}
