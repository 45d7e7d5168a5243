package cli

import (
	"fmt"
	"os"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <run_id>",
	Short: "Write a previously passed run's changes into the working tree",
	Long: `Apply reads a run's recorded changes bundle and, if its report shows the
run passed, writes the recorded file contents into the repository working
tree.

Run itself already supports --apply for the common case; this command exists
for applying a run that was evaluated earlier without --apply, or for
re-applying after reviewing the report.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		runID := args[0]
		reportPath := diagnostics.ReportPath(repoRoot, runID)
		if _, err := os.Stat(reportPath); err != nil {
			return fmt.Errorf("no report found for run %s: %w", runID, err)
		}
		run, err := diagnostics.ReadReport(reportPath)
		if err != nil {
			return err
		}
		if !run.Passed {
			return fmt.Errorf("run %s did not pass; refusing to apply", runID)
		}

		changes, err := readChangesBundle(repoRoot, runID)
		if err != nil {
			return err
		}

		if applyErr := applyChanges(repoRoot, changes); applyErr != nil {
			recordFinalization(cmd, reportPath, diagnostics.Finalization{
				Status:            diagnostics.FinalizationFailedBeforeFinalize,
				Detail:            applyErr.Error(),
				MutationOnFailure: "working tree may hold a partial apply",
			})
			return fmt.Errorf("applying changes: %w", applyErr)
		}
		recordFinalization(cmd, reportPath, diagnostics.Finalization{Status: diagnostics.FinalizationApplied})

		fmt.Fprintf(cmd.OutOrStdout(), "applied %d file(s) from run %s\n", len(changes), runID)
		return nil
	},
}
