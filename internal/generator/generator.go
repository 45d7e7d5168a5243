// Package generator wraps the LLM client's generation calls with scope
// enforcement and Speed-to-Smart escalation. The Gate
// Pipeline is the authority on whether a produced diff is acceptable;
// this package's only gate-adjacent behavior is refusing to write outside
// the suggestion's declared scope before the pipeline ever sees the file.
package generator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/sandbox"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// anchorErrorMarkers are substrings in a generation error that indicate the
// Speed-tier model lost track of its anchor (the file/line context it was
// asked to edit) rather than a transient failure, the signal that
// triggers one retry of the failed call on the Smart tier (at most
// MaxSmartEscalationsPerAttempt per attempt).
var anchorErrorMarkers = []string{
	"apply_anchor_not_found", "apply_anchor_ambiguous",
	"delimiter_only_anchor", "placeholder_ellipsis_anchor",
	"could not locate", "anchor not found", "context mismatch", "no such line",
}

// ErrOutOfScope is returned when a generation call would write to a path
// outside the suggestion's affected files.
var ErrOutOfScope = fmt.Errorf("generated edit targets a path outside the suggestion's scope")

// Generator produces single- and multi-file edits for one attempt.
type Generator struct {
	LLM    llmclient.LLMClient
	Models config.ModelsConfig
	Cfg    config.HarnessConfig

	escalations int
}

// New builds a Generator for one attempt's lifetime; escalation count is
// scoped to the Generator instance, so callers create a fresh one per
// attempt.
func New(llm llmclient.LLMClient, models config.ModelsConfig, cfg config.HarnessConfig) *Generator {
	return &Generator{LLM: llm, Models: models, Cfg: cfg}
}

// GenerateSingleFile writes s's fix to target inside dir, escalating from
// Speed to Smart if the Speed-tier call fails with an anchor error and the
// attempt has escalation budget remaining.
func (g *Generator) GenerateSingleFile(ctx context.Context, dir, target string, s suggestion.Suggestion, preview suggestion.FixPreview, a *diagnostics.AttemptDiagnostics) error {
	if !s.InScope(target) {
		return ErrOutOfScope
	}

	abs, rel, err := sandbox.ResolveRepoPathAllowNew(dir, target)
	if err != nil {
		return err
	}
	current, isNew := readIfExists(abs)

	model := llmclient.ForTier(g.Models, config.ModelSpeed)
	result, genErr := g.callSingle(ctx, rel, current, s, preview, isNew, model, "", a)
	if genErr != nil && g.shouldEscalate(genErr) {
		escalated := llmclient.ForTier(g.Models, config.ModelSmart)
		a.AddNote(fmt.Sprintf("smart_escalation_attempt_single:%s", rel))
		result, genErr = g.callSingle(ctx, rel, current, s, preview, isNew, escalated, escalationReason(genErr), a)
	}
	if genErr != nil {
		return genErr
	}

	return os.WriteFile(abs, []byte(result.NewContent), 0o644)
}

// GenerateMultiFile writes a coordinated edit across several files in one
// call, rejecting any produced path outside scope before writing anything.
// It returns the model's plain-language description of the change, which
// the plain_language gate validates once all LLM stages have completed.
func (g *Generator) GenerateMultiFile(ctx context.Context, dir string, targets []string, s suggestion.Suggestion, preview suggestion.FixPreview, a *diagnostics.AttemptDiagnostics) (string, error) {
	inputs := make([]llmclient.FileInput, 0, len(targets))
	for _, target := range targets {
		if !s.InScope(target) {
			return "", ErrOutOfScope
		}
		abs, rel, err := sandbox.ResolveRepoPathAllowNew(dir, target)
		if err != nil {
			return "", err
		}
		content, isNew := readIfExists(abs)
		inputs = append(inputs, llmclient.FileInput{Path: rel, Content: content, IsNew: isNew})
	}

	model := llmclient.ForTier(g.Models, config.ModelSpeed)
	result, genErr := g.callMulti(ctx, inputs, s, preview, model, "", a)
	if genErr != nil && g.shouldEscalate(genErr) {
		escalated := llmclient.ForTier(g.Models, config.ModelSmart)
		a.AddNote("smart_escalation_attempt_multi")
		result, genErr = g.callMulti(ctx, inputs, s, preview, escalated, escalationReason(genErr), a)
	}
	if genErr != nil {
		return "", genErr
	}

	for _, edit := range result.FileEdits {
		if !s.InScope(edit.Path) {
			return "", ErrOutOfScope
		}
		abs, _, err := sandbox.ResolveRepoPathAllowNew(dir, edit.Path)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(abs, []byte(edit.NewContent), 0o644); err != nil {
			return "", err
		}
	}
	return result.Description, nil
}

func (g *Generator) callSingle(ctx context.Context, rel, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model llmclient.ModelRef, escalated string, a *diagnostics.AttemptDiagnostics) (llmclient.FixContentResult, error) {
	entry := diagnostics.LLMCallEntry{Kind: diagnostics.CallGeneration, Model: model.String(), EscalationReason: escalated}
	result, err := g.LLM.GenerateFixContent(ctx, rel, current, s, preview, isNew, model)
	if err != nil {
		entry.Error = err.Error()
	}
	entry.SpeedFailover = result.SpeedFailover.Occurred
	a.LLMCalls = append(a.LLMCalls, entry)
	a.AttemptCostUSD += result.Usage.CostUSD
	return result, err
}

func (g *Generator) callMulti(ctx context.Context, inputs []llmclient.FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model llmclient.ModelRef, escalated string, a *diagnostics.AttemptDiagnostics) (llmclient.MultiFileFixResult, error) {
	entry := diagnostics.LLMCallEntry{Kind: diagnostics.CallGeneration, Model: model.String(), EscalationReason: escalated}
	result, err := g.LLM.GenerateMultiFileFix(ctx, inputs, s, preview, model)
	if err != nil {
		entry.Error = err.Error()
	}
	entry.SpeedFailover = result.SpeedFailover.Occurred
	a.LLMCalls = append(a.LLMCalls, entry)
	a.AttemptCostUSD += result.Usage.CostUSD
	return result, err
}

// escalationReason derives the recorded escalation tag from the failed
// Speed-tier call's error text: the matched anchor marker, normalized.
func escalationReason(genErr error) string {
	msg := strings.ToLower(genErr.Error())
	for _, marker := range anchorErrorMarkers {
		if strings.Contains(msg, marker) {
			return "anchor_error:" + strings.ReplaceAll(marker, " ", "_")
		}
	}
	return "anchor_error"
}

// shouldEscalate reports whether genErr looks like an anchor-tracking
// failure and the attempt still has escalation budget.
func (g *Generator) shouldEscalate(genErr error) bool {
	if g.escalations >= g.Cfg.MaxSmartEscalationsPerAttempt {
		return false
	}
	msg := strings.ToLower(genErr.Error())
	for _, marker := range anchorErrorMarkers {
		if strings.Contains(msg, marker) {
			g.escalations++
			return true
		}
	}
	return false
}

func readIfExists(path string) (content string, isNew bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", true
	}
	return string(data), false
}
