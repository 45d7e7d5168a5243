// Package sandbox provides the harness's isolation layer: a detached git
// worktree per attempt, path-safety resolution, and guaranteed cleanup.
package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// sanitizeLabel collapses every run of characters outside [A-Za-z0-9_-] into
// a single hyphen so run ids and attempt labels are always safe path
// components.
func sanitizeLabel(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "attempt"
	}
	return s
}

// Session is a created sandbox: a detached worktree rooted at Dir.
type Session struct {
	Dir        string
	RunDir     string
	Branch     string
	sourceRepo string
}

// Manager creates and cleans up per-attempt sandboxes under a fixed root.
type Manager struct {
	root string // e.g. $TMPDIR/cosmos-harness
}

// New returns a Manager rooted at filepath.Join(os.TempDir(), rootName).
func New(rootName string) *Manager {
	return &Manager{root: filepath.Join(os.TempDir(), rootName)}
}

// Create builds an isolated workspace copy for one attempt: a detached git
// worktree under root/run_id/sanitized_label, pointing at the same object
// store as sourceRepo. Any stale directory at the target is removed first.
// If createBranch is true, a scratch branch "codex/self-iterate-<fragment>"
// is created in the worktree.
func (m *Manager) Create(sourceRepo, runID, label string, createBranch bool) (*Session, error) {
	runDir := filepath.Join(m.root, sanitizeLabel(runID))
	dir := filepath.Join(runDir, sanitizeLabel(label))

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing stale sandbox at %s: %w", dir, err)
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox run directory: %w", err)
	}

	args := []string{"worktree", "add", "--detach", dir}
	cmd := exec.Command("git", args...)
	cmd.Dir = sourceRepo
	cmd.Env = envOverrides()
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("git worktree add: %s: %w", strings.TrimSpace(string(out)), err)
	}

	session := &Session{Dir: dir, RunDir: runDir, sourceRepo: sourceRepo}

	if createBranch {
		branch := "codex/self-iterate-" + sanitizeLabel(uuid.NewString()[:8])
		cmd := exec.Command("git", "checkout", "-b", branch)
		cmd.Dir = dir
		cmd.Env = envOverrides()
		if out, err := cmd.CombinedOutput(); err != nil {
			_ = m.cleanupDir(sourceRepo, dir)
			return nil, fmt.Errorf("git checkout -b %s: %s: %w", branch, strings.TrimSpace(string(out)), err)
		}
		session.Branch = branch
	}

	return session, nil
}

// Cleanup removes the worktree (force) and best-effort removes the run
// directory. Reachable on every pass/fail/abort path.
func (s *Session) Cleanup() error {
	if s == nil {
		return nil
	}
	if err := s.cleanupWorktree(); err != nil {
		return err
	}
	_ = os.RemoveAll(s.RunDir)
	return nil
}

func (s *Session) cleanupWorktree() error {
	cmd := exec.Command("git", "worktree", "remove", "--force", s.Dir)
	cmd.Dir = s.sourceRepo
	cmd.Env = envOverrides()
	if out, err := cmd.CombinedOutput(); err != nil {
		// The worktree directory may already be gone; fall back to a plain
		// removal plus a prune so git's worktree list doesn't go stale.
		_ = os.RemoveAll(s.Dir)
		pruneCmd := exec.Command("git", "worktree", "prune")
		pruneCmd.Dir = s.sourceRepo
		pruneCmd.Env = envOverrides()
		_ = pruneCmd.Run()
		_ = out
	}
	return nil
}

func (m *Manager) cleanupDir(sourceRepo, dir string) error {
	s := &Session{Dir: dir, sourceRepo: sourceRepo}
	return s.cleanupWorktree()
}

// envOverrides returns the fixed environment mapping used for every
// spawned subprocess: disable interactive prompts, disable any push,
// short-circuit credential helpers.
func envOverrides() []string {
	env := os.Environ()
	return append(env,
		"GIT_TERMINAL_PROMPT=0",
		"COSMOS_DISABLE_PUSH=1",
		"GIT_ASKPASS=/bin/false",
		"GIT_CONFIG_NOSYSTEM=1",
	)
}

// EnvOverrides exposes the fixed subprocess environment for callers outside
// this package (quick-check runner, fast-path formatters) that need the same
// isolation guarantees.
func EnvOverrides() []string { return envOverrides() }
