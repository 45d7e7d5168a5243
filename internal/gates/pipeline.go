package gates

import (
	"fmt"
	"unicode/utf8"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// Result is the outcome of running the deterministic gate pipeline once.
type Result struct {
	Passed       bool
	FailReasons  []diagnostics.FailReason
	ChangedFiles []ChangedFile
	LinesByFile  map[string]int
}

// Pipeline runs the fixed-order deterministic gates against a sandbox
// directory for one suggestion. A result's first non-empty fail-reasons
// list short-circuits the remaining LLM stages for the attempt.
type Pipeline struct {
	Dir    string
	Cfg    config.HarnessConfig
	Attempt *diagnostics.AttemptDiagnostics
}

func upsert(a *diagnostics.AttemptDiagnostics, gate string, passed bool, detail string, code diagnostics.Code) {
	snap := diagnostics.GateSnapshot{GateName: gate, Passed: passed, Detail: detail}
	if !passed {
		snap.ReasonCode = code
	}
	a.UpsertGate(snap)
}

// RunDeterministic runs non_empty_diff → scope → diff_budget → syntax →
// binary_write, stopping at the first failure. plain_language is run
// separately by RunPlainLanguage once all LLM stages have completed.
func (p *Pipeline) RunDeterministic(s suggestion.Suggestion, syntaxRepair func(path string) error) Result {
	changed, err := ChangedFiles(p.Dir)
	if err != nil {
		fr := diagnostics.FailReason{Code: diagnostics.CodeSandboxCreateFailed, Gate: "non_empty_diff", Message: err.Error()}
		upsert(p.Attempt, "non_empty_diff", false, err.Error(), fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}}
	}

	// non_empty_diff
	if len(changed) == 0 {
		fr := diagnostics.FailReason{Code: diagnostics.CodeNonEmptyDiffViolation, Gate: "non_empty_diff", Message: "no files differ from the original content"}
		upsert(p.Attempt, "non_empty_diff", false, fr.Message, fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}}
	}
	upsert(p.Attempt, "non_empty_diff", true, fmt.Sprintf("%d file(s) changed", len(changed)), "")

	// scope — best-effort revert out-of-scope paths, then recheck.
	var outOfScope []ChangedFile
	var inScope []ChangedFile
	for _, f := range changed {
		if s.InScope(f.Path) {
			inScope = append(inScope, f)
		} else {
			outOfScope = append(outOfScope, f)
		}
	}
	if len(outOfScope) > 0 {
		for _, f := range outOfScope {
			_ = RevertPath(p.Dir, f)
		}
		changed, err = ChangedFiles(p.Dir)
		if err != nil {
			fr := diagnostics.FailReason{Code: diagnostics.CodeScopeViolation, Gate: "scope", Message: err.Error()}
			upsert(p.Attempt, "scope", false, err.Error(), fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}}
		}
		var stillOut []string
		inScope = inScope[:0]
		for _, f := range changed {
			if s.InScope(f.Path) {
				inScope = append(inScope, f)
			} else {
				stillOut = append(stillOut, f.Path)
			}
		}
		if len(stillOut) > 0 {
			fr := diagnostics.FailReason{Code: diagnostics.CodeScopeViolation, Gate: "scope", Message: fmt.Sprintf("out-of-scope paths could not be reverted: %v", stillOut)}
			upsert(p.Attempt, "scope", false, fr.Message, fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}}
		}
		if len(inScope) == 0 {
			fr := diagnostics.FailReason{Code: diagnostics.CodeNonEmptyDiffViolation, Gate: "non_empty_diff", Message: "reverting out-of-scope changes left an empty diff"}
			upsert(p.Attempt, "non_empty_diff", false, fr.Message, fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}}
		}
	}
	upsert(p.Attempt, "scope", true, fmt.Sprintf("%d file(s) in scope", len(inScope)), "")

	// diff_budget
	linesByFile := make(map[string]int, len(inScope))
	total := 0
	for _, f := range inScope {
		n, err := ChangedLineCount(p.Dir, f)
		if err != nil {
			fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: err.Error()}
			upsert(p.Attempt, "diff_budget", false, err.Error(), fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}}
		}
		linesByFile[f.Path] = n
		total += n
	}
	if len(inScope) > p.Cfg.MaxChangedFiles {
		fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: fmt.Sprintf("changed %d files, cap is %d", len(inScope), p.Cfg.MaxChangedFiles)}
		upsert(p.Attempt, "diff_budget", false, fr.Message, fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
	}
	if total > p.Cfg.MaxTotalChangedLines {
		fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: fmt.Sprintf("changed %d lines total, cap is %d", total, p.Cfg.MaxTotalChangedLines)}
		upsert(p.Attempt, "diff_budget", false, fr.Message, fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
	}
	for path, n := range linesByFile {
		if n > p.Cfg.MaxChangedLinesPerFile {
			fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: fmt.Sprintf("%s changed %d lines, cap is %d", path, n, p.Cfg.MaxChangedLinesPerFile)}
			upsert(p.Attempt, "diff_budget", false, fr.Message, fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
		}
	}
	upsert(p.Attempt, "diff_budget", true, fmt.Sprintf("%d lines across %d files", total, len(inScope)), "")

	// syntax — bounded repair loop driven by the caller via syntaxRepair.
	if fr := p.runSyntaxGate(inScope, syntaxRepair); fr != nil {
		return Result{FailReasons: []diagnostics.FailReason{*fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
	}

	// binary_write
	if fr := p.runBinaryGate(inScope); fr != nil {
		return Result{FailReasons: []diagnostics.FailReason{*fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
	}

	return Result{Passed: true, ChangedFiles: inScope, LinesByFile: linesByFile}
}

func (p *Pipeline) runSyntaxGate(changed []ChangedFile, repair func(path string) error) *diagnostics.FailReason {
	return p.runSyntaxGateNamed("syntax", changed, repair)
}

func (p *Pipeline) runSyntaxGateNamed(gateName string, changed []ChangedFile, repair func(path string) error) *diagnostics.FailReason {
	loops := 0
	for {
		var badPaths []string
		for _, f := range changed {
			abs, _, err := pathAbs(p.Dir, f.Path)
			if err != nil {
				continue
			}
			data, err := readFileBestEffort(abs)
			if err != nil {
				continue
			}
			if ok, _ := CheckSyntax(f.Path, data); !ok {
				badPaths = append(badPaths, f.Path)
			}
		}
		if len(badPaths) == 0 {
			upsert(p.Attempt, gateName, true, "all changed files parse", "")
			return nil
		}
		if loops >= p.Cfg.MaxAutoSyntaxFixLoops || repair == nil {
			fr := diagnostics.FailReason{Code: diagnostics.CodeSyntaxViolation, Gate: gateName, Message: fmt.Sprintf("parse errors in: %v", badPaths)}
			upsert(p.Attempt, gateName, false, fr.Message, fr.Code)
			return &fr
		}
		loops++
		for _, path := range badPaths {
			if err := repair(path); err != nil {
				fr := diagnostics.FailReason{Code: diagnostics.CodeSyntaxViolation, Gate: gateName, Message: err.Error()}
				upsert(p.Attempt, gateName, false, fr.Message, fr.Code)
				return &fr
			}
		}
		p.Attempt.AddNote(fmt.Sprintf("%s_fix_loop_%d", gateName, loops))
	}
}

// changedInScope returns the subset of the sandbox's currently changed
// files that fall within s's approved scope.
func (p *Pipeline) changedInScope(s suggestion.Suggestion) ([]ChangedFile, error) {
	changed, err := ChangedFiles(p.Dir)
	if err != nil {
		return nil, err
	}
	var inScope []ChangedFile
	for _, f := range changed {
		if s.InScope(f.Path) {
			inScope = append(inScope, f)
		}
	}
	return inScope, nil
}

// RunPostReview re-checks binary_write and re-parses every in-scope changed
// file (recorded as the "post_review_syntax" gate) after the adversarial
// review's repair pass may have touched them.
func (p *Pipeline) RunPostReview(s suggestion.Suggestion, syntaxRepair func(path string) error) *diagnostics.FailReason {
	inScope, err := p.changedInScope(s)
	if err != nil {
		fr := diagnostics.FailReason{Code: diagnostics.CodeBinaryWriteViolation, Gate: "binary_write", Message: err.Error()}
		upsert(p.Attempt, "binary_write", false, err.Error(), fr.Code)
		return &fr
	}
	if fr := p.runBinaryGate(inScope); fr != nil {
		return fr
	}
	return p.runSyntaxGateNamed("post_review_syntax", inScope, syntaxRepair)
}

// RunFinalCheck re-validates scope and diff_budget against the sandbox's
// final state, after every repair sub-loop has run.
func (p *Pipeline) RunFinalCheck(s suggestion.Suggestion) Result {
	changed, err := ChangedFiles(p.Dir)
	if err != nil {
		fr := diagnostics.FailReason{Code: diagnostics.CodeScopeViolation, Gate: "scope", Message: err.Error()}
		upsert(p.Attempt, "scope", false, err.Error(), fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}}
	}

	var inScope []ChangedFile
	var outOfScope []string
	for _, f := range changed {
		if s.InScope(f.Path) {
			inScope = append(inScope, f)
		} else {
			outOfScope = append(outOfScope, f.Path)
		}
	}
	if len(outOfScope) > 0 {
		fr := diagnostics.FailReason{Code: diagnostics.CodeScopeViolation, Gate: "scope", Message: fmt.Sprintf("out-of-scope paths present at finalization: %v", outOfScope)}
		upsert(p.Attempt, "scope", false, fr.Message, fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}}
	}
	upsert(p.Attempt, "scope", true, fmt.Sprintf("%d file(s) in scope", len(inScope)), "")

	linesByFile := make(map[string]int, len(inScope))
	total := 0
	for _, f := range inScope {
		n, err := ChangedLineCount(p.Dir, f)
		if err != nil {
			fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: err.Error()}
			upsert(p.Attempt, "diff_budget", false, err.Error(), fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}}
		}
		linesByFile[f.Path] = n
		total += n
	}
	if len(inScope) > p.Cfg.MaxChangedFiles || total > p.Cfg.MaxTotalChangedLines {
		fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: fmt.Sprintf("final diff: %d files, %d lines", len(inScope), total)}
		upsert(p.Attempt, "diff_budget", false, fr.Message, fr.Code)
		return Result{FailReasons: []diagnostics.FailReason{fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
	}
	for path, n := range linesByFile {
		if n > p.Cfg.MaxChangedLinesPerFile {
			fr := diagnostics.FailReason{Code: diagnostics.CodeDiffBudgetViolation, Gate: "diff_budget", Message: fmt.Sprintf("%s changed %d lines, cap is %d", path, n, p.Cfg.MaxChangedLinesPerFile)}
			upsert(p.Attempt, "diff_budget", false, fr.Message, fr.Code)
			return Result{FailReasons: []diagnostics.FailReason{fr}, ChangedFiles: inScope, LinesByFile: linesByFile}
		}
	}
	upsert(p.Attempt, "diff_budget", true, fmt.Sprintf("%d lines across %d files", total, len(inScope)), "")
	return Result{Passed: true, ChangedFiles: inScope, LinesByFile: linesByFile}
}

func (p *Pipeline) runBinaryGate(changed []ChangedFile) *diagnostics.FailReason {
	for _, f := range changed {
		abs, _, err := pathAbs(p.Dir, f.Path)
		if err != nil {
			continue
		}
		data, err := readFileBestEffort(abs)
		if err != nil {
			continue
		}
		if isBinaryExt(f.Path) || containsNUL(data) || !utf8.Valid(data) {
			fr := diagnostics.FailReason{Code: diagnostics.CodeBinaryWriteViolation, Gate: "binary_write", Message: fmt.Sprintf("%s is binary or non-UTF-8", f.Path)}
			upsert(p.Attempt, "binary_write", false, fr.Message, fr.Code)
			return &fr
		}
	}
	upsert(p.Attempt, "binary_write", true, "no binary/non-UTF-8 writes", "")
	return nil
}

func containsNUL(data []byte) bool {
	for _, b := range data {
		if b == 0 {
			return true
		}
	}
	return false
}

var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".exe": true,
	".so": true, ".dylib": true, ".woff": true, ".woff2": true, ".ttf": true,
}

func isBinaryExt(path string) bool {
	ext := extOf(path)
	return binaryExts[ext]
}

// RunPlainLanguage validates the generated description once all prior gates
// have passed: length in [24,280] chars and at most two "technical marker"
// substrings from a fixed list.
func RunPlainLanguage(a *diagnostics.AttemptDiagnostics, description string) *diagnostics.FailReason {
	l := len([]rune(description))
	if l < 24 || l > 280 {
		fr := diagnostics.FailReason{Code: diagnostics.CodePlainLanguageFailure, Gate: "plain_language", Message: fmt.Sprintf("description length %d outside [24,280]", l)}
		upsert(a, "plain_language", false, fr.Message, fr.Code)
		return &fr
	}
	markers := countTechnicalMarkers(description)
	if markers > 2 {
		fr := diagnostics.FailReason{Code: diagnostics.CodePlainLanguageFailure, Gate: "plain_language", Message: fmt.Sprintf("description contains %d technical markers, max is 2", markers)}
		upsert(a, "plain_language", false, fr.Message, fr.Code)
		return &fr
	}
	upsert(a, "plain_language", true, "description reads as plain language", "")
	return nil
}

var technicalMarkers = []string{
	"nil pointer", "stack trace", "regex", "goroutine", "mutex", "enum",
	"struct", "interface{}", "panic(", "recover(", "ast", "ctx.Done()",
}

func countTechnicalMarkers(description string) int {
	lower := description
	count := 0
	for _, m := range technicalMarkers {
		if containsFold(lower, m) {
			count++
		}
	}
	return count
}
