// Package harness is the top-level orchestrator: it wires the budget
// controller, sandbox manager, generator, gate pipeline, review loop, and
// quick-check repair loop together into the bounded attempt loop.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cameronspears/cosmos/internal/budget"
	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/gates"
	"github.com/cameronspears/cosmos/internal/generator"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/quickcheck"
	"github.com/cameronspears/cosmos/internal/review"
	"github.com/cameronspears/cosmos/internal/sandbox"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// FileChange is one file's final content in a passing attempt's payload.
type FileChange struct {
	Path    string
	Content string
	IsNew   bool
}

// RunResult is the outcome of ImplementValidatedSuggestion.
type RunResult struct {
	Diagnostics *diagnostics.RunDiagnostics
	Changes     []FileChange
	ReportPath  string
}

// ProgressFunc reports one completed attempt for an interactive caller;
// callers that don't care may pass nil.
type ProgressFunc func(attemptIndex int, passed bool, fr *diagnostics.FailReason)

// Deps bundles every collaborator ImplementValidatedSuggestion needs.
type Deps struct {
	LLM           llmclient.LLMClient
	Models        config.ModelsConfig
	Cfg           config.HarnessConfig
	SourceRepo    string
	QuickCheckCmd quickcheck.Command
	Metrics       *diagnostics.Metrics
	Progress      ProgressFunc
}

// ImplementValidatedSuggestion runs the bounded attempt loop for s: each
// attempt gets its own sandbox, its own share of the run's remaining time
// and cost budget, and must clear every deterministic gate, the adversarial
// review, and (when configured) the project's own quick check before the
// harness accepts its payload. It returns a RunDiagnostics, win or lose —
// the caller decides whether to apply the payload. It returns an error
// instead when s is not validated, when a passing attempt's changes cannot
// be collected, or when the report or telemetry row cannot be written.
func ImplementValidatedSuggestion(ctx context.Context, s suggestion.Suggestion, deps Deps) (RunResult, error) {
	if s.State != suggestion.Validated {
		return RunResult{}, fmt.Errorf("suggestion %s is not in the validated state", s.ID)
	}

	runID := uuid.NewString()
	ctl := budget.New(deps.Cfg.MaxTotalMs, deps.Cfg.MaxTotalCostUSD)
	run := &diagnostics.RunDiagnostics{
		RunID:        runID,
		SuggestionID: s.ID,
		Summary:      s.Summary,
		Model:        deps.Models.Speed,
	}

	mgr := sandbox.New("cosmos-harness")
	stall := quickcheck.NewStallDetector()
	pacer := budget.NewPacer(1, 2)
	var completedUsage llmclient.Usage
	start := time.Now()

	attemptIndex := 0
	for attemptIndex < deps.Cfg.MaxAttempts {
		if fr := ctl.Exhausted(completedUsage); fr != nil {
			run.FailReasons = append(run.FailReasons, *fr)
			break
		}

		caps := ctl.AttemptCaps(completedUsage, deps.Cfg.MaxAttempts-attemptIndex)
		cap := caps[0]

		attempt := &diagnostics.AttemptDiagnostics{Index: attemptIndex}
		attemptStart := time.Now()

		session, err := mgr.Create(deps.SourceRepo, runID, fmt.Sprintf("attempt-%d", attemptIndex), false)
		if err != nil {
			fr := diagnostics.FailReason{Code: diagnostics.CodeSandboxCreateFailed, Gate: "sandbox", Message: err.Error()}
			fr.Truncate()
			attempt.FailReasons = append(attempt.FailReasons, fr)
			run.Attempts = append(run.Attempts, *attempt)
			run.FailReasons = append(run.FailReasons, fr)
			reportMetrics(deps.Metrics, attempt, false)
			if deps.Progress != nil {
				deps.Progress(attemptIndex, false, &fr)
			}
			attemptIndex++
			continue
		}

		outcome := runAttempt(ctx, session, s, cap, ctl, pacer, completedUsage, stall, deps, attempt)

		attempt.AttemptMs = time.Since(attemptStart).Milliseconds()
		completedUsage = completedUsage.Merge(llmclient.Usage{CostUSD: attempt.AttemptCostUSD})
		reportMetrics(deps.Metrics, attempt, outcome.passed)

		var fr *diagnostics.FailReason
		if !outcome.passed && len(attempt.FailReasons) > 0 {
			fr = &attempt.FailReasons[len(attempt.FailReasons)-1]
		}
		if deps.Progress != nil {
			deps.Progress(attemptIndex, outcome.passed, fr)
		}

		if outcome.passed {
			attempt.Passed = true
			run.Attempts = append(run.Attempts, *attempt)
			run.Passed = true
			run.ReducedConfidence = outcome.reducedConfidence
			changes, collectErr := collectChanges(session.Dir, outcome.finalResult.ChangedFiles)
			session.Cleanup()
			if collectErr != nil {
				return RunResult{}, collectErr
			}
			run.AttemptCount = attemptIndex + 1
			run.TotalMs = time.Since(start).Milliseconds()
			run.TotalCostUSD = completedUsage.CostUSD
			return finalizeRun(deps.SourceRepo, run, changes)
		}

		session.Cleanup()
		run.Attempts = append(run.Attempts, *attempt)
		if len(attempt.FailReasons) > 0 {
			run.FailReasons = append(run.FailReasons, attempt.FailReasons[len(attempt.FailReasons)-1])
		}
		if outcome.stalled {
			attempt.AddNote("cross_attempt_quick_check_stall")
			attemptIndex++
			break
		}
		attemptIndex++
	}

	run.AttemptCount = attemptIndex
	run.TotalMs = time.Since(start).Milliseconds()
	run.TotalCostUSD = completedUsage.CostUSD
	return finalizeRun(deps.SourceRepo, run, nil)
}

func reportMetrics(m *diagnostics.Metrics, a *diagnostics.AttemptDiagnostics, passed bool) {
	if m == nil {
		return
	}
	for _, g := range a.Gates {
		m.RecordGate(g.GateName, g.Passed)
	}
	m.RecordAttempt(passed)
}

func finalizeRun(repoRoot string, run *diagnostics.RunDiagnostics, changes []FileChange) (RunResult, error) {
	path, err := diagnostics.WriteReport(repoRoot, run)
	if err != nil {
		return RunResult{}, fmt.Errorf("writing run report: %w", err)
	}
	run.ReportPath = path
	if err := diagnostics.AppendTelemetry(repoRoot, diagnostics.RowFromRun(run)); err != nil {
		return RunResult{}, fmt.Errorf("appending telemetry: %w", err)
	}
	return RunResult{Diagnostics: run, Changes: changes, ReportPath: path}, nil
}

func collectChanges(dir string, changed []gates.ChangedFile) ([]FileChange, error) {
	out := make([]FileChange, 0, len(changed))
	for _, f := range changed {
		abs, _, err := sandbox.ResolveRepoPathAllowNew(dir, f.Path)
		if err != nil {
			return nil, err
		}
		content, _ := readFile(abs)
		out = append(out, FileChange{Path: f.Path, Content: content, IsNew: !f.Tracked})
	}
	return out, nil
}

// attemptOutcome is runAttempt's internal result.
type attemptOutcome struct {
	passed            bool
	stalled           bool
	reducedConfidence bool
	finalResult       gates.Result
}

// runAttempt implements the per-attempt pipeline: generate,
// run the deterministic gates, run the adversarial review, re-check after
// review repairs, run the quick-check auto-repair loop, re-review if it
// touched files, re-check scope/diff_budget one last time, then validate
// the plain-language description.
func runAttempt(ctx context.Context, session *sandbox.Session, s suggestion.Suggestion, cap budget.AttemptCap, ctl *budget.Controller, pacer *budget.Pacer, completedUsage llmclient.Usage, stall *quickcheck.StallDetector, deps Deps, attempt *diagnostics.AttemptDiagnostics) attemptOutcome {
	ctx, attemptCancel := context.WithTimeout(ctx, time.Duration(cap.MaxMs)*time.Millisecond)
	defer attemptCancel()

	gen := generator.New(deps.LLM, deps.Models, deps.Cfg)
	pipe := &gates.Pipeline{Dir: session.Dir, Cfg: deps.Cfg, Attempt: attempt}

	// guard runs before every LLM call the attempt makes: pace the start,
	// then refuse if the remaining time or cost buffer is too thin. A refusal
	// is recorded as a budget gate snapshot.
	guard := func() (fr *diagnostics.FailReason) {
		defer func() {
			if fr != nil {
				attempt.UpsertGate(diagnostics.GateSnapshot{GateName: "budget", Passed: false, Detail: fr.Message, ReasonCode: fr.Code})
			}
		}()
		if err := pacer.Wait(ctx); err != nil {
			return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "attempt deadline reached while pacing the next call"}
		}
		if attempt.AttemptCostUSD >= cap.MaxCostUSD {
			return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "attempt cost partition exhausted"}
		}
		return ctl.GuardBeforeLLMCall(completedUsage.Merge(llmclient.Usage{CostUSD: attempt.AttemptCostUSD}))
	}
	refuse := func(fr *diagnostics.FailReason) attemptOutcome {
		attempt.UpsertGate(diagnostics.GateSnapshot{GateName: "budget", Passed: false, Detail: fr.Message, ReasonCode: fr.Code})
		attempt.FailReasons = append(attempt.FailReasons, *fr)
		attempt.AddNote("budget_exceeded")
		return attemptOutcome{}
	}

	// Step 1-2: generation. Single-file suggestions call GenerateSingleFile;
	// multi-file suggestions call GenerateMultiFile and carry its plain
	// language description forward for the final gate.
	if fr := guard(); fr != nil {
		return refuse(fr)
	}

	description := s.Summary
	preview := suggestion.FixPreview{}
	genCtx, cancel := context.WithTimeout(ctx, time.Duration(ctl.TimeoutMsForNextLLMCall(budget.StageGeneration))*time.Millisecond)
	var genErr error
	if len(s.AffectedFiles) == 1 {
		genErr = gen.GenerateSingleFile(genCtx, session.Dir, s.AffectedFiles[0], s, preview, attempt)
	} else {
		var desc string
		desc, genErr = gen.GenerateMultiFile(genCtx, session.Dir, s.AffectedFiles, s, preview, attempt)
		if genErr == nil && desc != "" {
			description = desc
		}
	}
	cancel()
	if genErr != nil {
		fr := diagnostics.FailReason{Code: diagnostics.CodeGenerationFailed, Gate: "generation", Message: genErr.Error()}
		fr.Truncate()
		attempt.FailReasons = append(attempt.FailReasons, fr)
		return attemptOutcome{}
	}

	// Step 3: deterministic gates (non_empty_diff, scope, diff_budget,
	// syntax, binary_write), with a bounded syntax auto-repair callback.
	syntaxRepair := makeSyntaxRepair(ctx, session.Dir, s, deps, ctl, guard, attempt)
	det := pipe.RunDeterministic(s, syntaxRepair)
	if !det.Passed {
		attempt.FailReasons = append(attempt.FailReasons, det.FailReasons...)
		return attemptOutcome{}
	}

	changedPaths := make([]string, 0, len(det.ChangedFiles))
	for _, f := range det.ChangedFiles {
		changedPaths = append(changedPaths, f.Path)
	}

	// Optional quick-check baseline before committing review budget to a
	// change the project's own checks will reject outright either way.
	if deps.Cfg.EnableQuickCheckBaseline && !deps.QuickCheckCmd.IsZero() {
		baseline := quickcheck.Run(ctx, session.Dir, deps.QuickCheckCmd, quickcheck.TimeoutFromConfig(deps.Cfg))
		if baseline.Status == diagnostics.QuickCheckFailed {
			locs := quickcheck.ParseErrorLocations(baseline.StdoutTail+"\n"+baseline.StderrTail, quickcheck.CompileStripPatterns(deps.Cfg.ErrorLocationStripPatterns))
			if len(locs) == 0 {
				attempt.AddNote("baseline_quick_check_fail_fast")
				fr := diagnostics.FailReason{Code: diagnostics.CodeQuickCheckFailed, Gate: "quick_check", Message: "quick check failed with no in-scope error location to repair"}
				attempt.FailReasons = append(attempt.FailReasons, fr)
				return attemptOutcome{}
			}
		}
	}

	// Step 4: adversarial review. The primary pass runs on the configured
	// review tier; the independent second opinion is always the Smart tier,
	// so a Speed-tier primary still gets a genuinely independent confirmation.
	reviewDeps := review.Deps{
		LLM:              deps.LLM,
		PrimaryModel:     llmclient.ForTier(deps.Models, deps.Cfg.AdversarialReviewModel),
		IndependentModel: llmclient.ForTier(deps.Models, config.ModelSmart),
		Cfg:              deps.Cfg,
		Guard:            guard,
	}
	reviewCtx, reviewCancel := context.WithTimeout(ctx, time.Duration(ctl.TimeoutMsForNextLLMCall(budget.StageReview))*time.Millisecond)
	reviewResult, reviewErr := review.Run(reviewCtx, session.Dir, changedPaths, s, attempt, reviewDeps)
	reviewCancel()
	if reviewErr != nil {
		fr := diagnostics.FailReason{Code: diagnostics.CodeGenerationFailed, Gate: "review", Message: reviewErr.Error()}
		fr.Truncate()
		attempt.FailReasons = append(attempt.FailReasons, fr)
		return attemptOutcome{}
	}
	if reviewResult.Refused != nil {
		return refuse(reviewResult.Refused)
	}
	if !reviewResult.Passed {
		fr := diagnostics.FailReason{Code: diagnostics.CodeBlockingReviewResidual, Gate: "review", Message: fmt.Sprintf("%d blocking finding(s) unresolved", len(reviewResult.Residual))}
		attempt.FailReasons = append(attempt.FailReasons, fr)
		return attemptOutcome{}
	}

	// Step 5: post-review binary_write + syntax recheck, in case the
	// review's repair loop touched a file.
	if fr := pipe.RunPostReview(s, syntaxRepair); fr != nil {
		attempt.FailReasons = append(attempt.FailReasons, *fr)
		return attemptOutcome{}
	}

	// Step 6: quick-check auto-repair loop, gated by a budget reservation
	// check (before the loop and before each repair call) so repair never
	// eats into the independent review's budget.
	if deps.Cfg.QuickChecksMode == config.QuickChecksStrictAuto && !deps.QuickCheckCmd.IsZero() {
		if fr := ctl.ReservationCheck(completedUsage.Merge(llmclient.Usage{CostUSD: attempt.AttemptCostUSD}), deps.Cfg.ReserveIndependentReviewMs, deps.Cfg.ReserveIndependentReviewCostUSD); fr == nil {
			qcGuard := func() *diagnostics.FailReason {
				if fr := ctl.ReservationCheck(completedUsage.Merge(llmclient.Usage{CostUSD: attempt.AttemptCostUSD}), deps.Cfg.ReserveIndependentReviewMs, deps.Cfg.ReserveIndependentReviewCostUSD); fr != nil {
					return fr
				}
				return guard()
			}
			qcDeps := quickcheck.Deps{LLM: deps.LLM, Model: llmclient.ForTier(deps.Models, config.ModelSpeed), Cfg: deps.Cfg, Guard: qcGuard}
			timeoutFn := func() int64 { return ctl.TimeoutMsForNextLLMCall(budget.StageRepairFix) }
			loop := quickcheck.RunLoop(ctx, session.Dir, deps.QuickCheckCmd, s, timeoutFn, qcDeps, attempt)
			if !quickcheck.PassesPolicy(loop.Outcome.Status, deps.Cfg.RequireQuickCheckDetectable) {
				code := diagnostics.CodeQuickCheckFailed
				if loop.Outcome.Status == diagnostics.QuickCheckUnavailable {
					code = diagnostics.CodeQuickCheckUnavailable
				}
				fr := diagnostics.FailReason{Code: code, Gate: "quick_check", Message: loop.Outcome.StderrTail}
				fr.Truncate()
				attempt.FailReasons = append(attempt.FailReasons, fr)
				crossAttemptFP := quickcheck.OutcomeFingerprint(loop.Outcome.CommandLabel, loop.Outcome.StdoutTail, loop.Outcome.StderrTail)
				crossStalled := loop.Stalled || stall.Observe(crossAttemptFP) != nil
				return attemptOutcome{stalled: crossStalled}
			}
			if len(attempt.QuickCheckOutcomes) > 1 {
				// The loop ran at least one repair iteration; re-review the
				// files it may have touched before accepting the attempt.
				rereviewCtx, rereviewCancel := context.WithTimeout(ctx, time.Duration(ctl.TimeoutMsForNextLLMCall(budget.StageReview))*time.Millisecond)
				reReview, reReviewErr := review.Run(rereviewCtx, session.Dir, changedPaths, s, attempt, reviewDeps)
				rereviewCancel()
				if reReviewErr != nil {
					fr := diagnostics.FailReason{Code: diagnostics.CodeGenerationFailed, Gate: "review", Message: reReviewErr.Error()}
					fr.Truncate()
					attempt.FailReasons = append(attempt.FailReasons, fr)
					return attemptOutcome{}
				}
				if reReview.Refused != nil {
					return refuse(reReview.Refused)
				}
				if !reReview.Passed {
					fr := diagnostics.FailReason{Code: diagnostics.CodeBlockingReviewResidual, Gate: "review", Message: fmt.Sprintf("%d blocking finding(s) unresolved after quick-check repair", len(reReview.Residual))}
					attempt.FailReasons = append(attempt.FailReasons, fr)
					return attemptOutcome{}
				}
			}
		} else {
			attempt.AddNote("quick_check_repair_skipped_reservation")
		}
	}

	// Step 8: final scope + diff_budget recheck.
	final := pipe.RunFinalCheck(s)
	if !final.Passed {
		attempt.FailReasons = append(attempt.FailReasons, final.FailReasons...)
		return attemptOutcome{}
	}

	// plain_language gate.
	if fr := gates.RunPlainLanguage(attempt, description); fr != nil {
		attempt.FailReasons = append(attempt.FailReasons, *fr)
		return attemptOutcome{}
	}

	reducedConfidence := attempt.QuickCheckStatus != diagnostics.QuickCheckPassed
	if deps.Cfg.FailOnReducedConfidence && reducedConfidence {
		fr := diagnostics.FailReason{Code: diagnostics.CodeQuickCheckUnavailable, Gate: "quick_check", Message: "reduced confidence not permitted by configuration"}
		attempt.FailReasons = append(attempt.FailReasons, fr)
		return attemptOutcome{}
	}

	return attemptOutcome{passed: true, finalResult: final, reducedConfidence: reducedConfidence}
}

// makeSyntaxRepair closes over the attempt's sandbox and model so the gate
// pipeline can call it without knowing about the LLM client directly.
func makeSyntaxRepair(ctx context.Context, dir string, s suggestion.Suggestion, deps Deps, ctl *budget.Controller, guard func() *diagnostics.FailReason, attempt *diagnostics.AttemptDiagnostics) func(path string) error {
	return func(path string) error {
		if fr := guard(); fr != nil {
			return fmt.Errorf("%s", fr.Message)
		}
		abs, rel, err := sandbox.ResolveRepoPathAllowNew(dir, path)
		if err != nil {
			return err
		}
		current, isNew := readFile(abs)
		model := llmclient.ForTier(deps.Models, config.ModelSpeed)
		timeoutMs := ctl.TimeoutMsForNextLLMCall(budget.StageGeneration)
		callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
		defer cancel()
		result, genErr := deps.LLM.GenerateFixContent(callCtx, rel, current, s, suggestion.FixPreview{Modifier: "repair the parse error introduced by the previous edit"}, isNew, model)
		entry := diagnostics.LLMCallEntry{Kind: diagnostics.CallGeneration, Model: model.String(), TimeoutMs: timeoutMs}
		if genErr != nil {
			entry.Error = genErr.Error()
			attempt.LLMCalls = append(attempt.LLMCalls, entry)
			return genErr
		}
		attempt.LLMCalls = append(attempt.LLMCalls, entry)
		attempt.AttemptCostUSD += result.Usage.CostUSD
		return writeFile(abs, result.NewContent)
	}
}
