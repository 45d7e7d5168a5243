// Package llmclient defines the harness's dependency-injected LLM contract:
// generation, multi-file generation, adversarial review, and review-finding
// repair, each parameterized by an explicit model and timeout so the Budget
// Controller stays in full control of call pacing.
package llmclient

import (
	"strings"

	"github.com/cameronspears/cosmos/internal/config"
)

// ModelRef identifies an LLM model by provider and model ID.
type ModelRef struct {
	ProviderID string
	ModelID    string
}

// ParseModelRef parses a "provider/model" string into a ModelRef.
func ParseModelRef(s string) ModelRef {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return ModelRef{ProviderID: parts[0], ModelID: parts[1]}
	}
	return ModelRef{ModelID: s}
}

// String returns the "provider/model" representation.
func (m ModelRef) String() string {
	if m.ProviderID == "" {
		return m.ModelID
	}
	return m.ProviderID + "/" + m.ModelID
}

// ForTier resolves a config.ModelTier to a concrete ModelRef.
func ForTier(models config.ModelsConfig, tier config.ModelTier) ModelRef {
	if tier == config.ModelSmart {
		return ParseModelRef(models.Smart)
	}
	return ParseModelRef(models.Speed)
}

// Usage accumulates token and cost accounting across one or more calls.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}

// Merge folds o into u, monotonically.
func (u Usage) Merge(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		CostUSD:          u.CostUSD + o.CostUSD,
	}
}

// SpeedFailover records that a Speed-tier call silently fell back to a
// different backend model, for diagnostics only — it does not change policy.
type SpeedFailover struct {
	Occurred     bool
	FromModel    string
	ToModel      string
	Reason       string
}

// ModifiedArea names a contiguous region the model reports having touched.
// The backends fill it in on generation results; the diff-budget gate
// counts changed lines from git and does not read it.
type ModifiedArea struct {
	StartLine int
	EndLine   int
	Summary   string
}

// FixGenerationError is returned by generation calls that fail outright; its
// usage and failover fields must still be merged into the attempt's totals.
type FixGenerationError struct {
	Err           error
	Usage         Usage
	SpeedFailover SpeedFailover
}

func (e *FixGenerationError) Error() string { return e.Err.Error() }
func (e *FixGenerationError) Unwrap() error { return e.Err }

// FixContentResult is the single-file generation response.
type FixContentResult struct {
	NewContent    string
	ModifiedAreas []ModifiedArea
	Usage         Usage
	SpeedFailover SpeedFailover
}

// FileEdit is one file produced by a multi-file generation call.
type FileEdit struct {
	Path          string
	NewContent    string
	ModifiedAreas []ModifiedArea
}

// MultiFileFixResult is the multi-file generation response.
type MultiFileFixResult struct {
	FileEdits     []FileEdit
	Description   string
	Usage         Usage
	SpeedFailover SpeedFailover
}

// Finding is one review observation.
type Finding struct {
	Title       string
	Category    string
	Severity    config.Severity
	File        string
	Recommended bool
}

// ReviewResult is the adversarial-review response.
type ReviewResult struct {
	Findings           []Finding
	Usage              Usage
	SchemaFallbackUsed bool
	SpeedFailover      SpeedFailover
}

// FileInput is one file's current content supplied to a multi-file
// generation call.
type FileInput struct {
	Path    string
	Content string
	IsNew   bool
}
