package diagnostics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readTelemetryFile(dir string) ([]TelemetryRow, error) {
	f, err := os.Open(filepath.Join(dir, TelemetryPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []TelemetryRow
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row TelemetryRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func TestWriteReportReadReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	run := &RunDiagnostics{
		RunID:        "run-1",
		SuggestionID: "sugg-1",
		Summary:      "fix the thing",
		Model:        "anthropic/claude-sonnet",
		Passed:       true,
		AttemptCount: 1,
		TotalMs:      1200,
		TotalCostUSD: 0.01,
		Attempts: []AttemptDiagnostics{
			{Index: 0, Passed: true, Gates: []GateSnapshot{{GateName: "scope", Passed: true}}},
		},
	}

	path, err := WriteReport(dir, run)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if run.ReportPath != path {
		t.Fatalf("expected run.ReportPath to be set to %s, got %s", path, run.ReportPath)
	}

	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if got.RunID != run.RunID || got.SuggestionID != run.SuggestionID || !got.Passed {
		t.Fatalf("round-tripped report mismatch: %+v", got)
	}
	if len(got.Attempts) != 1 || got.Attempts[0].Gates[0].GateName != "scope" {
		t.Fatalf("expected attempt/gate data to survive the round trip, got %+v", got.Attempts)
	}
}

func TestFinalizeReportPatchesInPlace(t *testing.T) {
	dir := t.TempDir()
	run := &RunDiagnostics{RunID: "run-2", SuggestionID: "sugg-2", Passed: true}
	path, err := WriteReport(dir, run)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	if err := FinalizeReport(path, Finalization{Status: FinalizationApplied, Detail: "applied to main"}); err != nil {
		t.Fatalf("FinalizeReport: %v", err)
	}

	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if got.Finalization == nil || got.Finalization.Status != FinalizationApplied {
		t.Fatalf("expected finalization.status patched to applied, got %+v", got.Finalization)
	}
	if got.Finalization.Detail != "applied to main" {
		t.Fatalf("expected finalization.detail patched, got %+v", got.Finalization)
	}
	// The rest of the report must survive untouched.
	if got.RunID != "run-2" || !got.Passed {
		t.Fatalf("expected unrelated fields to survive the sjson patch, got %+v", got)
	}
}

func TestRowFromRunDerivesTelemetryFields(t *testing.T) {
	run := &RunDiagnostics{
		RunID:        "run-3",
		SuggestionID: "sugg-3",
		Passed:       true,
		AttemptCount: 2,
		TotalMs:      5000,
		TotalCostUSD: 0.2,
		Finalization: &Finalization{Status: FinalizationApplied},
		Attempts: []AttemptDiagnostics{
			{
				QuickCheckStatus: QuickCheckFailed,
				LLMCalls: []LLMCallEntry{
					{Kind: CallGeneration},
				},
				Notes: []string{"baseline_quick_check_fail_fast"},
			},
			{
				QuickCheckStatus: QuickCheckPassed,
				LLMCalls: []LLMCallEntry{
					{Kind: CallIndependentReview},
					{Kind: CallGeneration, SchemaFallbackUsed: true},
					{Kind: CallGeneration, EscalationReason: "apply_anchor_not_found"},
				},
			},
		},
	}

	row := RowFromRun(run)
	if row.SchemaVersion != 0 {
		t.Fatalf("expected RowFromRun to leave schema_version for AppendTelemetry to stamp, got %d", row.SchemaVersion)
	}
	if !row.IndependentReviewExecuted {
		t.Fatal("expected independent_review_executed to be true")
	}
	if row.SchemaFallbackCount != 1 {
		t.Fatalf("expected schema_fallback_count 1, got %d", row.SchemaFallbackCount)
	}
	if row.SmartEscalationCount != 1 {
		t.Fatalf("expected smart_escalation_count 1, got %d", row.SmartEscalationCount)
	}
	if row.BaselineQuickCheckFailFast != 1 {
		t.Fatalf("expected baseline_quick_check_fail_fast_count 1, got %d", row.BaselineQuickCheckFailFast)
	}
	if row.QuickCheckFinalStatus != string(QuickCheckPassed) {
		t.Fatalf("expected quick_check_final_status to reflect the last attempt with a status, got %s", row.QuickCheckFinalStatus)
	}
	if row.FinalizationStatus != string(FinalizationApplied) {
		t.Fatalf("expected finalization_status applied, got %s", row.FinalizationStatus)
	}
}

func TestAppendTelemetryWritesOneJSONLineWithSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	row := TelemetryRow{RunID: "run-4", SuggestionID: "sugg-4", Passed: true}
	if err := AppendTelemetry(dir, row); err != nil {
		t.Fatalf("AppendTelemetry: %v", err)
	}
	if err := AppendTelemetry(dir, TelemetryRow{RunID: "run-5", SuggestionID: "sugg-5"}); err != nil {
		t.Fatalf("AppendTelemetry: %v", err)
	}

	data, err := readTelemetryFile(dir)
	if err != nil {
		t.Fatalf("reading telemetry file: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected two telemetry rows, got %d", len(data))
	}
	if data[0].SchemaVersion != TelemetrySchemaVersion {
		t.Fatalf("expected schema_version %d, got %d", TelemetrySchemaVersion, data[0].SchemaVersion)
	}
	if data[0].RunID != "run-4" || data[1].RunID != "run-5" {
		t.Fatalf("expected rows in append order, got %+v", data)
	}
}
