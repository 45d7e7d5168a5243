package quickcheck

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/sandbox"
)

// sandboxIncompatibilityMarkers are stderr substrings that indicate the
// quick-check tool cannot run inside the sandbox at all (e.g. it needs
// network access to a registry that's blocked), distinct from a genuine
// failure of the code under test.
var sandboxIncompatibilityMarkers = []string{
	"ENOTFOUND", "ECONNREFUSED", "could not resolve host", "permission denied (publickey)",
}

// Run executes cmd in dir with the given timeout, inheriting the sandbox's
// fixed environment overrides, and derives a QuickCheckOutcome.
func Run(ctx context.Context, dir string, cmd Command, timeout time.Duration) diagnostics.QuickCheckOutcome {
	if err := ensureQuickCheckPrereqs(dir, cmd); err != nil {
		return diagnostics.QuickCheckOutcome{
			CommandLabel: cmd.String(),
			Status:       diagnostics.QuickCheckUnavailable,
			StderrTail:   CommandOutputTail(err.Error()),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var execCmd *exec.Cmd
	if cmd.Shell != "" {
		execCmd = exec.CommandContext(ctx, "sh", "-c", cmd.Shell)
	} else {
		execCmd = exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	}
	execCmd.Dir = dir
	execCmd.Env = sandbox.EnvOverrides()

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	start := time.Now()
	runErr := execCmd.Run()
	duration := time.Since(start)

	timedOut := ctx.Err() == context.DeadlineExceeded
	exitCode := 0
	started := true
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			// The process never started (missing binary, etc).
			started = false
		}
	}

	outcome := diagnostics.QuickCheckOutcome{
		CommandLabel: cmd.String(),
		DurationMs:   duration.Milliseconds(),
		TimedOut:     timedOut,
		ExitCode:     exitCode,
		StdoutTail:   CommandOutputTail(stdout.String()),
		StderrTail:   CommandOutputTail(stderr.String()),
	}

	switch {
	case !started:
		outcome.Status = diagnostics.QuickCheckUnavailable
	case hasSandboxIncompatibility(outcome.StderrTail):
		outcome.Status = diagnostics.QuickCheckUnavailable
	case timedOut:
		outcome.Status = diagnostics.QuickCheckFailed
	case exitCode == 0:
		outcome.Status = diagnostics.QuickCheckPassed
	default:
		outcome.Status = diagnostics.QuickCheckFailed
	}

	return outcome
}

func hasSandboxIncompatibility(stderr string) bool {
	for _, marker := range sandboxIncompatibilityMarkers {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}

// PassesPolicy reports whether a quick-check status counts as passing: a
// real pass always does, and an unavailable check does only when the
// configuration tolerates undetectable checks.
func PassesPolicy(status diagnostics.QuickCheckStatus, requireDetectable bool) bool {
	if status == diagnostics.QuickCheckPassed {
		return true
	}
	return status == diagnostics.QuickCheckUnavailable && !requireDetectable
}

// ensureQuickCheckPrereqs detects a missing or symlinked node_modules when
// the command needs a real directory, and copies node_modules from the
// repo's primary checkout into the sandbox rather than declaring the check
// unavailable. dir is the
// sandbox worktree; its parent chain shares the same .git, so the primary
// checkout is resolved via `git rev-parse --git-common-dir`.
func ensureQuickCheckPrereqs(dir string, cmd Command) error {
	if !commandNeedsRealNodeModules(cmd) {
		return nil
	}

	nm := filepath.Join(dir, "node_modules")
	info, err := os.Lstat(nm)
	if err == nil && info.Mode()&os.ModeSymlink == 0 && info.IsDir() {
		return nil // already a real directory
	}

	primary, findErr := primaryCheckoutDir(dir)
	if findErr != nil {
		return nil // best-effort; let the runner report unavailable naturally
	}
	sourceNM := filepath.Join(primary, "node_modules")
	sourceInfo, statErr := os.Stat(sourceNM)
	if statErr != nil || !sourceInfo.IsDir() {
		return nil
	}

	_ = os.RemoveAll(nm)
	return copyDir(sourceNM, nm)
}

func commandNeedsRealNodeModules(cmd Command) bool {
	label := cmd.String()
	return strings.Contains(label, "npm ") || strings.Contains(label, "npx ") ||
		strings.Contains(label, "pnpm ") || strings.Contains(label, "yarn ") ||
		strings.Contains(label, "eslint") || strings.Contains(label, "jest") ||
		strings.Contains(label, "vitest") || strings.Contains(label, "tsc")
}

func primaryCheckoutDir(worktreeDir string) (string, error) {
	out, err := exec.Command("git", "-C", worktreeDir, "rev-parse", "--git-common-dir").Output()
	if err != nil {
		return "", err
	}
	commonDir := strings.TrimSpace(string(out))
	// .git/.. is the primary checkout root for a non-bare repo.
	return filepath.Dir(commonDir), nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

// TimeoutFromConfig resolves the configured quick-check timeout.
func TimeoutFromConfig(cfg config.HarnessConfig) time.Duration {
	return time.Duration(cfg.QuickCheckTimeoutMs) * time.Millisecond
}
