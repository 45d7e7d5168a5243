package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/harness"
	"github.com/cameronspears/cosmos/internal/quickcheck"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

var (
	runSuggestionFlag string
	runQuickCheckFlag string
	runApplyFlag      bool
)

func init() {
	runCmd.Flags().StringVar(&runSuggestionFlag, "suggestion", "", "Path to a validated suggestion YAML file (picked interactively from .cosmos/suggestions/ when omitted)")
	runCmd.Flags().StringVar(&runQuickCheckFlag, "quick-check", "", "Shell command run in the sandbox after each candidate change")
	runCmd.Flags().BoolVar(&runApplyFlag, "apply", false, "Write the passing attempt's changes into the working tree")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Implement a validated suggestion inside an isolated sandbox",
	Long: `Run attempts to implement a validated suggestion: it creates a detached git
worktree sandbox, generates a candidate change, runs it through the
deterministic gate pipeline and adversarial review, optionally auto-repairs
against a quick-check command, and repeats up to the configured attempt
count or until the time/cost budget is exhausted.

The result is always written as a JSON report under .cosmos/apply_harness/.
Pass --apply to also write the passing attempt's file contents into the
working tree; otherwise the sandbox is discarded and a passing attempt's
file contents are kept in a changes bundle beside the report, for a later
'cosmos-harness apply <run-id>'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		suggestionPath := runSuggestionFlag
		if suggestionPath == "" {
			picked, err := pickSuggestionFile(repoRoot)
			if err != nil {
				return err
			}
			suggestionPath = picked
		}

		s, err := suggestion.LoadFile(suggestionPath)
		if err != nil {
			return err
		}

		router, shutdown, err := newLLMRouter(cmd.Context(), appConfig, repoRoot)
		if err != nil {
			return err
		}
		defer shutdown()

		var qc quickcheck.Command
		if runQuickCheckFlag != "" {
			qc = quickcheck.Command{Shell: runQuickCheckFlag}
		}

		var metrics *diagnostics.Metrics
		if appConfig.Metrics.Enabled {
			metrics = diagnostics.NewMetrics(prometheusRegisterer())
			startMetricsServer(appConfig.Metrics.Addr)
		}

		deps := harness.Deps{
			LLM:           router,
			Models:        appConfig.Models,
			Cfg:           appConfig.Harness,
			SourceRepo:    repoRoot,
			QuickCheckCmd: qc,
			Metrics:       metrics,
			Progress: func(attemptIndex int, passed bool, fr *diagnostics.FailReason) {
				outcome := "failed"
				if passed {
					outcome = "passed"
				}
				if fr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d %s: %s (%s)\n", attemptIndex, outcome, fr.Code, fr.Gate)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "attempt %d %s\n", attemptIndex, outcome)
				}
			},
		}

		result, err := harness.ImplementValidatedSuggestion(cmd.Context(), s, deps)
		if err != nil {
			return err
		}

		if idx, idxErr := diagnostics.OpenIndex(runIndexPath(repoRoot)); idxErr == nil {
			if err := idx.Record(cmd.Context(), result.Diagnostics); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to record run in index: %v\n", err)
			}
			idx.Close()
		}

		if result.Diagnostics.Passed {
			fmt.Fprintf(cmd.OutOrStdout(), "PASSED after %d attempt(s), %d file(s) changed, report: %s\n",
				result.Diagnostics.AttemptCount, len(result.Changes), result.ReportPath)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "FAILED after %d attempt(s), report: %s\n",
				result.Diagnostics.AttemptCount, result.ReportPath)
		}

		if result.Diagnostics.Passed {
			if err := writeChangesBundle(repoRoot, result.Diagnostics.RunID, result.Changes); err != nil {
				return fmt.Errorf("recording changes bundle: %w", err)
			}
			if runApplyFlag {
				if applyErr := applyChanges(repoRoot, result.Changes); applyErr != nil {
					recordFinalization(cmd, result.ReportPath, diagnostics.Finalization{
						Status:            diagnostics.FinalizationFailedBeforeFinalize,
						Detail:            applyErr.Error(),
						MutationOnFailure: "working tree may hold a partial apply",
					})
					return fmt.Errorf("applying changes: %w", applyErr)
				}
				recordFinalization(cmd, result.ReportPath, diagnostics.Finalization{Status: diagnostics.FinalizationApplied})
				fmt.Fprintln(cmd.OutOrStdout(), "changes written to working tree")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "run cosmos-harness apply %s to write these changes into the working tree\n", result.Diagnostics.RunID)
			}
		}

		if !result.Diagnostics.Passed {
			recordFinalization(cmd, result.ReportPath, diagnostics.Finalization{Status: diagnostics.FinalizationFailedBeforeFinalize})
			os.Exit(1)
		}
		return nil
	},
}

// recordFinalization writes the apply/rollback outcome back into the run
// report. A failure here only warns: the outcome of the apply itself is the
// result the user cares about.
func recordFinalization(cmd *cobra.Command, reportPath string, f diagnostics.Finalization) {
	if reportPath == "" {
		return
	}
	if err := diagnostics.FinalizeReport(reportPath, f); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to record finalization: %v\n", err)
	}
}

// pickSuggestionFile prompts interactively over the suggestion files under
// .cosmos/suggestions/, labeled by their summaries.
func pickSuggestionFile(repoRoot string) (string, error) {
	dir := filepath.Join(repoRoot, ".cosmos", "suggestions")
	matches, _ := filepath.Glob(filepath.Join(dir, "*.yaml"))
	more, _ := filepath.Glob(filepath.Join(dir, "*.yml"))
	matches = append(matches, more...)
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("no --suggestion given and no suggestion files found under %s", dir)
	}

	options := make([]huh.Option[string], 0, len(matches))
	for _, m := range matches {
		label := filepath.Base(m)
		if s, err := suggestion.LoadFile(m); err == nil && s.Summary != "" {
			label = fmt.Sprintf("%s: %s", filepath.Base(m), s.Summary)
		}
		options = append(options, huh.NewOption(label, m))
	}

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Pick a suggestion to implement").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("picking a suggestion: %w", err)
	}
	return chosen, nil
}

// applyChanges writes a run's changed file contents into repoRoot, creating
// parent directories for newly introduced files.
func applyChanges(repoRoot string, changes []harness.FileChange) error {
	for _, c := range changes {
		dest := filepath.Join(repoRoot, c.Path)
		if c.IsNew {
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(dest, []byte(c.Content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", c.Path, err)
		}
	}
	return nil
}
