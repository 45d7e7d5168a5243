package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/spf13/cobra"
)

var reportLimitFlag int

func init() {
	reportCmd.Flags().IntVar(&reportLimitFlag, "limit", 20, "Maximum number of runs to list")
	reportCmd.AddCommand(reportShowCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List recent harness runs",
	Long:  `Report lists the most recently recorded runs from the sqlite run index, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		idx, err := diagnostics.OpenIndex(runIndexPath(repoRoot))
		if err != nil {
			return fmt.Errorf("opening run index: %w", err)
		}
		defer idx.Close()

		runs, err := idx.Recent(cmd.Context(), reportLimitFlag)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
			return nil
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		passStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Padding(0, 1)
		failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			status := "FAIL"
			if r.Passed {
				status = "PASS"
			}
			rows = append(rows, []string{
				r.RunID, status, strconv.Itoa(r.AttemptCount),
				fmt.Sprintf("$%.4f", r.TotalCostUSD), r.SuggestionID, r.Summary,
			})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("RUN", "STATUS", "ATTEMPTS", "COST", "SUGGESTION", "SUMMARY").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case col == 1 && rows[row][1] == "PASS":
					return passStyle
				case col == 1:
					return failStyle
				default:
					return cellStyle
				}
			})

		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var reportShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Show a single run's full diagnostics report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		path := diagnostics.ReportPath(repoRoot, args[0])
		run, err := diagnostics.ReadReport(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s  suggestion %s  passed=%v  attempts=%d  total_ms=%d  total_cost_usd=%.4f\n",
			run.RunID, run.SuggestionID, run.Passed, run.AttemptCount, run.TotalMs, run.TotalCostUSD)
		for _, fr := range run.FailReasons {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", fr.UserMessage())
		}

		headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		cellStyle := lipgloss.NewStyle().Padding(0, 1)

		for _, a := range run.Attempts {
			fmt.Fprintf(cmd.OutOrStdout(), "\nattempt %d: passed=%v quick_check=%s changed=%v\n",
				a.Index, a.Passed, a.QuickCheckStatus, a.ChangedFiles)

			if len(a.Gates) == 0 {
				continue
			}
			rows := make([][]string, 0, len(a.Gates))
			for _, g := range a.Gates {
				rows = append(rows, []string{g.GateName, strconv.FormatBool(g.Passed), g.Detail})
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("GATE", "PASSED", "DETAIL").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					return cellStyle
				})
			fmt.Fprintln(cmd.OutOrStdout(), t)
		}
		return nil
	},
}

// runIndexPath returns the sqlite run index's on-disk path, alongside the
// per-run JSON reports it indexes.
func runIndexPath(repoRoot string) string {
	return filepath.Join(repoRoot, diagnostics.ReportDir, "index.sqlite")
}
