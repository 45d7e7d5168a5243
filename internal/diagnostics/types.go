// Package diagnostics defines the harness's structured per-attempt and
// per-run records, the closed reason-code taxonomy, report persistence, and
// telemetry append.
package diagnostics

// Code is the closed taxonomy of machine-readable failure reasons.
type Code string

const (
	CodeBudgetExceeded         Code = "budget_exceeded"
	CodeScopeViolation         Code = "scope_violation"
	CodeDiffBudgetViolation    Code = "diff_budget_violation"
	CodeSyntaxViolation        Code = "syntax_violation"
	CodeBinaryWriteViolation   Code = "binary_write_violation"
	CodeQuickCheckFailed       Code = "quick_check_failed"
	CodeQuickCheckUnavailable  Code = "quick_check_unavailable"
	CodeBlockingReviewResidual Code = "blocking_review_residual"
	CodePlainLanguageFailure   Code = "plain_language_failure"
	CodeNonEmptyDiffViolation  Code = "non_empty_diff_violation"
	CodeGenerationFailed       Code = "generation_failed"
	CodeSandboxCreateFailed    Code = "sandbox_create_failed"
)

// plainLanguagePrefixes maps each code to the user-facing sentence prefix
// shown ahead of the truncated technical detail.
var plainLanguagePrefixes = map[Code]string{
	CodeBudgetExceeded:         "Cosmos stopped before applying changes because the run budget was exhausted.",
	CodeScopeViolation:         "Cosmos stopped because the model edited files outside the approved scope.",
	CodeDiffBudgetViolation:    "Cosmos stopped because the change was larger than the configured size limit.",
	CodeSyntaxViolation:        "Cosmos stopped because the generated change did not parse.",
	CodeBinaryWriteViolation:   "Cosmos stopped because the change touched a binary or non-UTF-8 file.",
	CodeQuickCheckFailed:       "Cosmos stopped because the project's own checks kept failing.",
	CodeQuickCheckUnavailable:  "Cosmos stopped because no project check could be run to validate the change.",
	CodeBlockingReviewResidual: "Cosmos stopped because an automated review found unresolved issues.",
	CodePlainLanguageFailure:   "Cosmos stopped because it could not produce a clear plain-language summary.",
	CodeNonEmptyDiffViolation:  "Cosmos stopped because the model produced no actual change.",
	CodeGenerationFailed:       "Cosmos stopped because the model failed to produce a candidate change.",
	CodeSandboxCreateFailed:    "Cosmos stopped because it could not prepare an isolated workspace.",
}

// defaultActions pairs each code with its default recovery action sentence.
var defaultActions = map[Code]string{
	CodeBudgetExceeded:         "Increase the time or cost budget and try again.",
	CodeScopeViolation:         "Narrow the suggestion or widen its approved scope.",
	CodeDiffBudgetViolation:    "Split the change into smaller suggestions.",
	CodeSyntaxViolation:        "Review the generated diff manually.",
	CodeBinaryWriteViolation:   "Exclude binary files from the suggestion's scope.",
	CodeQuickCheckFailed:       "Inspect the project's check output for the underlying cause.",
	CodeQuickCheckUnavailable:  "Configure a quick-check command for this project.",
	CodeBlockingReviewResidual: "Address the reported findings manually.",
	CodePlainLanguageFailure:   "Report this as a harness defect.",
	CodeNonEmptyDiffViolation:  "Re-run with a more specific suggestion.",
	CodeGenerationFailed:       "Retry, or report this as a harness defect.",
	CodeSandboxCreateFailed:    "Check that the source repository is a valid git checkout.",
}

// FailReason is a gate failure: a machine-readable code, the gate that
// produced it, and a truncated technical message. It does not store a
// recovery action; UserMessage derives the action sentence from Code via
// defaultActions. Expected gate failures are returned as *FailReason, never as a
// generic error — only unexpected I/O/subprocess failures use plain wrapped
// errors.
type FailReason struct {
	Code    Code   `json:"code"`
	Gate    string `json:"gate"`
	Message string `json:"message"`
}

const maxMessageLen = 240

// Truncate clamps Message to the 240-char cap applied to captured
// exceptions/panics from the LLM client.
func (f *FailReason) Truncate() {
	if len(f.Message) > maxMessageLen {
		f.Message = f.Message[:maxMessageLen]
	}
}

// UserMessage renders the plain-language prefix plus the truncated detail
// and a trailing action sentence.
func (f FailReason) UserMessage() string {
	prefix, ok := plainLanguagePrefixes[f.Code]
	if !ok {
		prefix = "Cosmos stopped the run."
	}
	action, ok := defaultActions[f.Code]
	if !ok {
		action = "Review the attached diagnostics."
	}
	detail := f.Message
	if len(detail) > maxMessageLen {
		detail = detail[:maxMessageLen]
	}
	if detail == "" {
		return prefix + " " + action
	}
	return prefix + " " + detail + " " + action
}

// GateSnapshot is one gate's pass/fail record for an attempt. Diagnostics
// keep one snapshot per gate name, upserted in place across repair passes.
type GateSnapshot struct {
	GateName   string `json:"gate_name"`
	Passed     bool   `json:"passed"`
	Detail     string `json:"detail"`
	ReasonCode Code   `json:"reason_code,omitempty"`
}

// QuickCheckStatus is the quick-check runner's derived status.
type QuickCheckStatus string

const (
	QuickCheckPassed      QuickCheckStatus = "passed"
	QuickCheckFailed      QuickCheckStatus = "failed"
	QuickCheckUnavailable QuickCheckStatus = "unavailable"
)

// QuickCheckOutcome is one execution of the project's quick-check command.
type QuickCheckOutcome struct {
	CommandLabel string           `json:"command_label"`
	Status       QuickCheckStatus `json:"status"`
	DurationMs   int64            `json:"duration_ms"`
	TimedOut     bool             `json:"timed_out"`
	ExitCode     int              `json:"exit_code"`
	StdoutTail   string           `json:"stdout_tail"`
	StderrTail   string           `json:"stderr_tail"`
}

// LLMCallKind tags what an LLM call entry in the diagnostics log represents.
type LLMCallKind string

const (
	CallGeneration          LLMCallKind = "generation"
	CallReview              LLMCallKind = "review"
	CallReviewFix           LLMCallKind = "review_fix"
	CallIndependentReview   LLMCallKind = "independent_review"
	CallQuickCheckRepairFix LLMCallKind = "quick_check_repair_fix"
)

// LLMCallEntry is one call log entry.
type LLMCallEntry struct {
	Kind               LLMCallKind `json:"kind"`
	Model              string      `json:"model"`
	TimeoutMs          int64       `json:"timeout_ms"`
	IndependenceRole    string      `json:"independence_role,omitempty"`
	EscalationReason   string      `json:"escalation_reason,omitempty"`
	SchemaFallbackUsed bool        `json:"schema_fallback_used"`
	SpeedFailover      bool        `json:"speed_failover"`
	Error              string      `json:"error,omitempty"`
}

// ResidualFinding is a blocking review finding that survived to the end of
// an attempt.
type ResidualFinding struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

// AttemptDiagnostics is the per-attempt record.
type AttemptDiagnostics struct {
	Index                int                      `json:"index"`
	Passed               bool                     `json:"passed"`
	Gates                []GateSnapshot           `json:"gates"`
	FailReasons          []FailReason             `json:"fail_reasons"`
	ChangedFiles         []string                 `json:"changed_files"`
	ChangedLinesByFile   map[string]int           `json:"changed_lines_by_file"`
	QuickCheckStatus     QuickCheckStatus         `json:"quick_check_status"`
	QuickCheckLabel      string                   `json:"quick_check_label"`
	QuickCheckOutcomes   []QuickCheckOutcome      `json:"quick_check_outcomes"`
	ReviewIterations     int                      `json:"review_iterations"`
	ResidualFindings     []ResidualFinding        `json:"residual_findings"`
	AttemptMs            int64                    `json:"attempt_ms"`
	AttemptCostUSD       float64                  `json:"attempt_cost_usd"`
	LLMCalls             []LLMCallEntry           `json:"llm_calls"`
	Notes                []string                 `json:"notes"`
}

// UpsertGate replaces the snapshot for gate.GateName if present, otherwise
// appends it, so diagnostics keep one snapshot per gate name across repair
// passes.
func (a *AttemptDiagnostics) UpsertGate(g GateSnapshot) {
	for i := range a.Gates {
		if a.Gates[i].GateName == g.GateName {
			a.Gates[i] = g
			return
		}
	}
	a.Gates = append(a.Gates, g)
}

// AddNote appends a free-form note (used for fingerprints, repair flags, and
// budget_exceeded markers).
func (a *AttemptDiagnostics) AddNote(note string) {
	a.Notes = append(a.Notes, note)
}

// HasNote reports whether a note with this exact text was already recorded.
func (a *AttemptDiagnostics) HasNote(note string) bool {
	for _, n := range a.Notes {
		if n == note {
			return true
		}
	}
	return false
}

// FinalizationStatus is the caller's post-run apply/rollback outcome.
type FinalizationStatus string

const (
	FinalizationApplied               FinalizationStatus = "applied"
	FinalizationRolledBack            FinalizationStatus = "rolled_back"
	FinalizationFailedBeforeFinalize  FinalizationStatus = "failed_before_finalize"
)

// Finalization is recorded by the caller after it applies or discards the
// payload; the harness writes it back into the same report.
type Finalization struct {
	Status            FinalizationStatus `json:"status"`
	Detail            string             `json:"detail,omitempty"`
	MutationOnFailure string             `json:"mutation_on_failure,omitempty"`
}

// RunDiagnostics is the per-run record persisted as the run report.
type RunDiagnostics struct {
	RunID            string               `json:"run_id"`
	SuggestionID     string               `json:"suggestion_id"`
	Summary          string               `json:"summary"`
	Model            string               `json:"model"`
	Passed           bool                 `json:"passed"`
	AttemptCount     int                  `json:"attempt_count"`
	TotalMs          int64                `json:"total_ms"`
	TotalCostUSD     float64              `json:"total_cost_usd"`
	ReducedConfidence bool                `json:"reduced_confidence"`
	FailReasons      []FailReason         `json:"fail_reasons"`
	Attempts         []AttemptDiagnostics `json:"attempts"`
	ReportPath       string               `json:"report_path,omitempty"`
	Finalization     *Finalization        `json:"finalization,omitempty"`
}
