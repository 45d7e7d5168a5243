package quickcheck

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/sandbox"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// snippetRadius is how many lines of surrounding context a repair prompt
// includes on either side of a parsed error location.
const snippetRadius = 8

// languageHints gives the repair prompt a short, language-specific nudge
// keyed by file extension; an unknown extension gets no hint.
var languageHints = map[string]string{
	".go":   "Preserve exported identifiers and existing error wrapping conventions.",
	".ts":   "Keep type annotations accurate; do not add `any` to silence the checker.",
	".tsx":  "Keep type annotations accurate; do not add `any` to silence the checker.",
	".js":   "Match the existing module style (ESM vs CommonJS) already used in the file.",
	".py":   "Preserve existing type hints and import ordering.",
	".rs":   "Preserve existing trait bounds; do not add `unwrap()` to silence the compiler.",
}

// LoopResult is the outcome of running RunLoop to completion.
type LoopResult struct {
	Outcome diagnostics.QuickCheckOutcome
	Passed  bool
	Stalled bool
}

// Deps bundles the collaborators RunLoop needs beyond the attempt state
// it's threading through. Guard, when set, is consulted before every repair
// LLM call; a non-nil FailReason stops the loop instead of starting the call.
type Deps struct {
	LLM   llmclient.LLMClient
	Model llmclient.ModelRef
	Cfg   config.HarnessConfig
	Guard func() *diagnostics.FailReason
}

// RunLoop executes the quick-check command, and if it fails, attempts up to
// cfg.MaxAutoQuickCheckFixLoops repairs before giving up. Each
// iteration: run the command; if it already passes the policy, return; try a
// formatter/linter fast path with no LLM call if one applies; otherwise
// parse failure locations, build a focused per-file repair prompt, and call
// the LLM to patch each implicated file before rerunning.
func RunLoop(ctx context.Context, dir string, cmd Command, s suggestion.Suggestion, timeoutFn func() (timeoutMs int64), deps Deps, a *diagnostics.AttemptDiagnostics) LoopResult {
	stripPatterns := CompileStripPatterns(deps.Cfg.ErrorLocationStripPatterns)
	stall := NewStallDetector()

	var last diagnostics.QuickCheckOutcome
	for iter := 0; iter <= deps.Cfg.MaxAutoQuickCheckFixLoops; iter++ {
		timeout := time.Duration(timeoutFn()) * time.Millisecond
		last = Run(ctx, dir, cmd, timeout)
		a.QuickCheckOutcomes = append(a.QuickCheckOutcomes, last)
		a.QuickCheckStatus = last.Status
		a.QuickCheckLabel = last.CommandLabel

		if PassesPolicy(last.Status, deps.Cfg.RequireQuickCheckDetectable) {
			return LoopResult{Outcome: last, Passed: true}
		}
		if last.Status == diagnostics.QuickCheckUnavailable {
			// No autofix loop applies to an unreachable tool.
			return LoopResult{Outcome: last, Passed: false}
		}
		if iter == deps.Cfg.MaxAutoQuickCheckFixLoops {
			break // repair budget exhausted; fall through to failed result
		}

		fp := OutcomeFingerprint(last.CommandLabel, last.StdoutTail, last.StderrTail)
		a.AddNote(fmt.Sprintf("quick_check_fingerprint_%d:%s", iter, fp))
		if err := stall.Observe(fp); err != nil {
			a.AddNote("quick_check_repair_stalled")
			return LoopResult{Outcome: last, Passed: false, Stalled: true}
		}

		if kind := DetectFastPath(dir, cmd); kind != FastPathNone {
			fast := FastPathCommand(kind, cmd)
			a.AddNote("quick_check_fast_path:" + string(kind))
			Run(ctx, dir, fast, timeout)
			continue
		}

		raw := ParseErrorLocations(last.StdoutTail+"\n"+last.StderrTail, stripPatterns)
		locs := raw
		if deps.Cfg.QuickCheckFixRequiresInScopeError {
			locs = filterInScope(raw, s.AffectedFiles)
			if len(locs) == 0 && len(raw) > 0 && len(s.AffectedFiles) == 1 {
				// Every parsed location points elsewhere, but only one file is
				// in play; aim the repair at it with the failure text as
				// evidence.
				locs = []ErrorLocation{{File: s.AffectedFiles[0], Message: raw[0].Message}}
				a.AddNote("quick_check_repair_single_file_fallback")
			}
		}
		if len(locs) == 0 {
			a.AddNote("quick_check_repair_no_location_parsed")
			return LoopResult{Outcome: last, Passed: false}
		}

		if !repairLocations(ctx, dir, locs, s, deps, a) {
			return LoopResult{Outcome: last, Passed: false}
		}
	}
	return LoopResult{Outcome: last, Passed: false}
}

func filterInScope(locs []ErrorLocation, affected []string) []ErrorLocation {
	var out []ErrorLocation
	for _, l := range locs {
		if l.InScope(affected) {
			out = append(out, l)
		}
	}
	return out
}

// repairLocations groups locations by file and issues one generation call
// per implicated file, writing the result back to the sandbox. It returns
// false if no file could be repaired (callers then give up).
func repairLocations(ctx context.Context, dir string, locs []ErrorLocation, s suggestion.Suggestion, deps Deps, a *diagnostics.AttemptDiagnostics) bool {
	byFile := map[string][]ErrorLocation{}
	for _, l := range locs {
		if l.File == "" {
			continue
		}
		byFile[l.File] = append(byFile[l.File], l)
	}
	if len(byFile) == 0 {
		return false
	}

	repairedAny := false
	for file, fileLocs := range byFile {
		if deps.Guard != nil {
			if fr := deps.Guard(); fr != nil {
				a.AddNote("quick_check_repair_blocked_by_budget")
				return repairedAny
			}
		}
		abs, rel, err := sandbox.ResolveRepoPathAllowNew(dir, file)
		if err != nil {
			continue
		}
		current, readErr := os.ReadFile(abs)
		if readErr != nil {
			continue
		}

		snippet, line := buildSnippet(string(current), fileLocs)
		preview := suggestion.FixPreview{Modifier: repairPromptHeader(fileLocs)}.WithEvidence(line, snippet)

		entry := diagnostics.LLMCallEntry{Kind: diagnostics.CallQuickCheckRepairFix, Model: deps.Model.String()}
		result, genErr := deps.LLM.GenerateFixContent(ctx, rel, string(current), s, preview, false, deps.Model)
		if genErr != nil {
			entry.Error = genErr.Error()
			a.LLMCalls = append(a.LLMCalls, entry)
			continue
		}
		entry.SchemaFallbackUsed = false
		entry.SpeedFailover = result.SpeedFailover.Occurred
		a.LLMCalls = append(a.LLMCalls, entry)
		a.AttemptCostUSD += result.Usage.CostUSD

		if err := os.WriteFile(abs, []byte(result.NewContent), 0o644); err != nil {
			continue
		}
		repairedAny = true
	}
	return repairedAny
}

func buildSnippet(content string, locs []ErrorLocation) (snippet string, line int) {
	line = locs[0].Line
	lines := strings.Split(content, "\n")
	if line <= 0 || line > len(lines) {
		return content, 0
	}
	start := line - 1 - snippetRadius
	if start < 0 {
		start = 0
	}
	end := line - 1 + snippetRadius
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return strings.Join(lines[start:end+1], "\n"), line
}

func repairPromptHeader(locs []ErrorLocation) string {
	var b strings.Builder
	b.WriteString("Fix the following quick-check failures:\n")
	for _, l := range locs {
		fmt.Fprintf(&b, "- line %d: %s\n", l.Line, l.Message)
	}
	if hint, ok := languageHints[strings.ToLower(filepath.Ext(locs[0].File))]; ok {
		b.WriteString(hint)
	}
	return b.String()
}
