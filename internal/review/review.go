// Package review runs the adversarial review pass over a candidate change
// and the bounded per-file repair loop over its blocking findings. Review
// is deliberately separate from generation: the same
// model that wrote the change is never trusted to grade it unsupervised,
// and a configured independent pass may re-run the check with a different
// model once the primary model believes it has passed.
package review

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

// maxBlockingFindings aborts the repair loop rather than continuing to
// iterate against an overwhelming number of blocking findings: a change
// that far gone is cheaper to regenerate than to repair one finding at a
// time.
const maxBlockingFindings = 6

// Deps bundles the review loop's collaborators. Guard, when set, is consulted
// before every review call and once before each round of repair calls; the
// per-file repair calls within a round are not checked one by one. A non-nil
// FailReason refuses the call and surfaces on Result.Refused.
type Deps struct {
	LLM              llmclient.LLMClient
	PrimaryModel     llmclient.ModelRef
	IndependentModel llmclient.ModelRef
	Cfg              config.HarnessConfig
	Guard            func() *diagnostics.FailReason
}

// Result is the outcome of Run.
type Result struct {
	Passed              bool
	Residual            []llmclient.Finding
	Iterations          int
	IndependentExecuted bool
	// Refused is set when the budget guard blocked a call before the loop
	// could finish; the findings state is then inconclusive, not failing.
	Refused *diagnostics.FailReason
}

func (d Deps) guard() *diagnostics.FailReason {
	if d.Guard == nil {
		return nil
	}
	return d.Guard()
}

// Run loads every changed file's content, runs the adversarial review, and
// repeatedly repairs blocking findings up to cfg.MaxAutoReviewFixLoops. If
// the loop ends clean and cfg.RequireIndependentReviewOnPass is set, it runs
// one more review pass with the independent model before declaring success.
func Run(ctx context.Context, dir string, changed []string, s suggestion.Suggestion, a *diagnostics.AttemptDiagnostics, deps Deps) (Result, error) {
	var fixedTitles []string

	for iter := 0; iter <= deps.Cfg.MaxAutoReviewFixLoops; iter++ {
		inputs, err := loadFileInputs(dir, changed)
		if err != nil {
			return Result{}, err
		}

		if fr := deps.guard(); fr != nil {
			return Result{Refused: fr, Iterations: iter}, nil
		}
		review, err := callReview(ctx, deps.LLM, inputs, iter, fixedTitles, "", deps.PrimaryModel, diagnostics.CallReview, a)
		if err != nil {
			return Result{}, err
		}
		a.ReviewIterations = iter + 1

		blocking := filterBlocking(review.Findings, deps.Cfg.ReviewBlockingSeverities, compilerQuickCheckPassed(a))
		if len(blocking) == 0 {
			return finishClean(ctx, dir, changed, iter, deps, a)
		}
		if len(blocking) > maxBlockingFindings {
			recordResidual(a, blocking)
			return Result{Passed: false, Residual: blocking, Iterations: iter + 1}, nil
		}
		if iter == deps.Cfg.MaxAutoReviewFixLoops {
			recordResidual(a, blocking)
			return Result{Passed: false, Residual: blocking, Iterations: iter + 1}, nil
		}

		if fr := deps.guard(); fr != nil {
			return Result{Refused: fr, Iterations: iter + 1}, nil
		}
		if err := repairBlocking(ctx, dir, blocking, s, iter, &fixedTitles, deps, a); err != nil {
			return Result{}, err
		}
	}
	return Result{Passed: false}, nil
}

// finishClean runs the optional independent confirmation pass once the
// primary review has no blocking findings left.
func finishClean(ctx context.Context, dir string, changed []string, iter int, deps Deps, a *diagnostics.AttemptDiagnostics) (Result, error) {
	if !deps.Cfg.RequireIndependentReviewOnPass {
		return Result{Passed: true, Iterations: iter + 1}, nil
	}

	inputs, err := loadFileInputs(dir, changed)
	if err != nil {
		return Result{}, err
	}
	if fr := deps.guard(); fr != nil {
		return Result{Refused: fr, Iterations: iter + 1}, nil
	}
	review, err := callReview(ctx, deps.LLM, inputs, iter, nil, "independent confirmation pass", deps.IndependentModel, diagnostics.CallIndependentReview, a)
	if err != nil {
		return Result{}, err
	}
	blocking := filterBlocking(review.Findings, deps.Cfg.ReviewBlockingSeverities, compilerQuickCheckPassed(a))
	if len(blocking) > 0 {
		recordResidual(a, blocking)
		return Result{Passed: false, Residual: blocking, Iterations: iter + 1, IndependentExecuted: true}, nil
	}
	return Result{Passed: true, Iterations: iter + 1, IndependentExecuted: true}, nil
}

func loadFileInputs(dir string, changed []string) ([]llmclient.FileInput, error) {
	inputs := make([]llmclient.FileInput, 0, len(changed))
	for _, rel := range changed {
		abs, relClean, err := sandbox.ResolveRepoPathAllowNew(dir, rel)
		if err != nil {
			continue
		}
		data, readErr := os.ReadFile(abs)
		if readErr != nil {
			inputs = append(inputs, llmclient.FileInput{Path: relClean, IsNew: true})
			continue
		}
		inputs = append(inputs, llmclient.FileInput{Path: relClean, Content: string(data)})
	}
	return inputs, nil
}

func callReview(ctx context.Context, client llmclient.LLMClient, inputs []llmclient.FileInput, iter int, fixedTitles []string, fixContext string, model llmclient.ModelRef, kind diagnostics.LLMCallKind, a *diagnostics.AttemptDiagnostics) (llmclient.ReviewResult, error) {
	role := ""
	if kind == diagnostics.CallIndependentReview {
		role = "independent"
	}
	result, err := client.VerifyChangesBounded(ctx, inputs, iter, fixedTitles, fixContext, model)
	entry := diagnostics.LLMCallEntry{
		Kind:               kind,
		Model:              model.String(),
		IndependenceRole:   role,
		SchemaFallbackUsed: result.SchemaFallbackUsed,
		SpeedFailover:      result.SpeedFailover.Occurred,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	a.LLMCalls = append(a.LLMCalls, entry)
	a.AttemptCostUSD += result.Usage.CostUSD
	return result, err
}

// filterBlocking keeps only recommended findings whose severity is in
// blockingSeverities, dropping any finding that merely restates a
// quick-check/compiler failure once a compiler-shaped quick check has
// already passed for this attempt — the review model frequently re-reports
// an issue the compiler already caught and the repair loop already resolved.
func filterBlocking(findings []llmclient.Finding, blockingSeverities []config.Severity, compilerCheckPassed bool) []llmclient.Finding {
	allowed := map[config.Severity]bool{}
	for _, s := range blockingSeverities {
		allowed[s] = true
	}

	var blocking []llmclient.Finding
	for _, f := range findings {
		if !f.Recommended || !allowed[f.Severity] {
			continue
		}
		if compilerCheckPassed && (f.Category == "compiler" || looksLikeCompileFalsePositive(f.Title)) {
			continue
		}
		blocking = append(blocking, f)
	}
	return blocking
}

// compileFalsePositiveMarkers are title fragments the review model produces
// when it hallucinates a compile error the compiler itself did not report.
var compileFalsePositiveMarkers = []string{
	"missing import", "unresolved import", "cannot find", "is not defined",
}

func looksLikeCompileFalsePositive(title string) bool {
	lower := strings.ToLower(title)
	for _, m := range compileFalsePositiveMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	// A backticked symbol reported as undefined is the other common shape.
	return strings.Contains(lower, "`") && strings.Contains(lower, "undefined")
}

// compilerShapedMarkers identify quick-check commands that are compilers or
// typecheckers, whose success makes compile-error review findings spurious.
var compilerShapedMarkers = []string{
	"cargo check", "cargo build", "go build", "go vet", "tsc", "rustc", "javac",
}

func compilerShaped(label string) bool {
	lower := strings.ToLower(label)
	for _, m := range compilerShapedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func compilerQuickCheckPassed(a *diagnostics.AttemptDiagnostics) bool {
	return a.QuickCheckStatus == diagnostics.QuickCheckPassed && compilerShaped(a.QuickCheckLabel)
}

func recordResidual(a *diagnostics.AttemptDiagnostics, findings []llmclient.Finding) {
	for _, f := range findings {
		a.ResidualFindings = append(a.ResidualFindings, diagnostics.ResidualFinding{Title: f.Title, Category: f.Category})
	}
}

// repairBlocking groups findings by file and issues one fix_review_findings
// call per file, writing the repaired content back to the sandbox.
func repairBlocking(ctx context.Context, dir string, blocking []llmclient.Finding, s suggestion.Suggestion, iter int, fixedTitles *[]string, deps Deps, a *diagnostics.AttemptDiagnostics) error {
	byFile := map[string][]llmclient.Finding{}
	for _, f := range blocking {
		byFile[f.File] = append(byFile[f.File], f)
	}

	for file, findings := range byFile {
		abs, rel, err := sandbox.ResolveRepoPathAllowNew(dir, file)
		if err != nil {
			continue
		}
		current, readErr := os.ReadFile(abs)
		if readErr != nil {
			continue
		}

		fixFindings := make([]llmclient.Finding, 0, len(findings))
		for _, f := range findings {
			fixFindings = append(fixFindings, f)
			*fixedTitles = append(*fixedTitles, f.Title)
		}

		result, err := deps.LLM.FixReviewFindings(ctx, rel, string(current), nil, fixFindings, iter, *fixedTitles, deps.PrimaryModel)
		entry := diagnostics.LLMCallEntry{Kind: diagnostics.CallReviewFix, Model: deps.PrimaryModel.String()}
		if err != nil {
			entry.Error = err.Error()
			a.LLMCalls = append(a.LLMCalls, entry)
			return fmt.Errorf("fix review findings for %s: %w", rel, err)
		}
		entry.SpeedFailover = result.SpeedFailover.Occurred
		a.LLMCalls = append(a.LLMCalls, entry)
		a.AttemptCostUSD += result.Usage.CostUSD

		if err := os.WriteFile(abs, []byte(result.NewContent), 0o644); err != nil {
			return err
		}
	}
	return nil
}
