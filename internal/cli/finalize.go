package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/github"
	"github.com/spf13/cobra"
)

var finalizePRFlag string

func init() {
	finalizeCmd.Flags().StringVar(&finalizePRFlag, "pr", "", "PR identifier: owner/repo#number or a GitHub PR URL (required)")
	finalizeCmd.MarkFlagRequired("pr")
	rootCmd.AddCommand(finalizeCmd)
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <run_id>",
	Short: "Post a run's outcome as a summary comment on a GitHub PR",
	Long: `Finalize reads a previously recorded run report and posts a plain-language
summary of its outcome as a comment on the named pull request. This is the
harness's one external-collaborator integration: it never pushes commits or
merges anything itself, it only reports what happened.

Requires a GITHUB_TOKEN (or GH_TOKEN) environment variable with comment
permission on the target repository.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := config.RepoRoot()
		if repoRoot == "" {
			return fmt.Errorf("not in a git repository")
		}

		run, err := diagnostics.ReadReport(diagnostics.ReportPath(repoRoot, args[0]))
		if err != nil {
			return err
		}

		token := os.Getenv("GITHUB_TOKEN")
		if token == "" {
			token = os.Getenv("GH_TOKEN")
		}
		if token == "" {
			return fmt.Errorf("GITHUB_TOKEN or GH_TOKEN must be set")
		}

		owner, repo, err := splitOwnerRepoFromFlag(finalizePRFlag)
		if err != nil {
			return err
		}
		backend := github.NewBackend(owner, repo, token)

		pr, err := backend.GetPR(cmd.Context(), finalizePRFlag)
		if err != nil {
			return fmt.Errorf("looking up PR: %w", err)
		}

		body := summarizeRun(run)
		if err := backend.PostComment(cmd.Context(), pr, body); err != nil {
			return fmt.Errorf("posting comment: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "posted summary for run %s to %s\n", run.RunID, finalizePRFlag)
		return nil
	},
}

// splitOwnerRepoFromFlag extracts "owner/repo" from any of the PR identifier
// formats the GitHub backend accepts, since NewBackend needs owner/repo up
// front but GetPR also accepts the full identifier.
func splitOwnerRepoFromFlag(id string) (owner, repo string, err error) {
	s := id
	if idx := strings.Index(s, "#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
		if idx := strings.Index(s, "/"); idx >= 0 {
			s = s[idx+1:]
		}
	}
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("could not determine owner/repo from %q; use owner/repo#number or a full PR URL", id)
	}
	repo = parts[1]
	if idx := strings.Index(repo, "/"); idx >= 0 {
		repo = repo[:idx]
	}
	return parts[0], repo, nil
}

// summarizeRun renders a run's outcome as a short plain-language PR comment.
func summarizeRun(run *diagnostics.RunDiagnostics) string {
	var b strings.Builder
	if run.Passed {
		fmt.Fprintf(&b, "**cosmos-harness**: implemented `%s` after %d attempt(s) ($%.4f, %dms).\n",
			run.SuggestionID, run.AttemptCount, run.TotalCostUSD, run.TotalMs)
		if run.ReducedConfidence {
			b.WriteString("\n_Note: this change passed without a detectable project quick-check; review carefully._\n")
		}
	} else {
		fmt.Fprintf(&b, "**cosmos-harness**: could not implement `%s` after %d attempt(s).\n", run.SuggestionID, run.AttemptCount)
		for _, fr := range run.FailReasons {
			fmt.Fprintf(&b, "- %s\n", fr.UserMessage())
		}
	}
	return b.String()
}
