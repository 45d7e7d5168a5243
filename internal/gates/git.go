// Package gates implements the deterministic validators run in a fixed
// order after generation and after every repair step.
package gates

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cameronspears/cosmos/internal/sandbox"
)

// ChangedFile is one path git reports as differing from HEAD in the
// sandbox, plus whether it is tracked.
type ChangedFile struct {
	Path    string
	Tracked bool
}

// ChangedFiles runs `git status --porcelain` in dir and returns every
// changed path, tracked or not.
func ChangedFiles(dir string) ([]ChangedFile, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	cmd.Env = sandbox.EnvOverrides()
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status --porcelain: %w", err)
	}

	var files []ChangedFile
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		status := line[:2]
		path := strings.TrimSpace(line[3:])
		tracked := status != "??"
		files = append(files, ChangedFile{Path: path, Tracked: tracked})
	}
	return files, nil
}

// ChangedLineCount returns the number of added/removed lines for path,
// parsed from unified=0 diff output for tracked files; for untracked files
// it returns max(1, lines_in_file).
func ChangedLineCount(dir string, f ChangedFile) (int, error) {
	if !f.Tracked {
		return untrackedLineCount(dir, f.Path)
	}

	cmd := exec.Command("git", "diff", "--unified=0", "--", f.Path)
	cmd.Dir = dir
	cmd.Env = sandbox.EnvOverrides()
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("git diff --unified=0 -- %s: %w", f.Path, err)
	}

	count := 0
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			count++
		}
	}
	return count, nil
}

func untrackedLineCount(dir, relPath string) (int, error) {
	abs, _, err := sandbox.ResolveRepoPathAllowNew(dir, relPath)
	if err != nil {
		return 0, err
	}
	data, err := readFileBestEffort(abs)
	if err != nil {
		return 1, nil
	}
	lines := strings.Count(string(data), "\n")
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines++
	}
	if lines < 1 {
		lines = 1
	}
	return lines, nil
}

// RevertPath best-effort reverts an out-of-scope change: `git checkout --`
// for a tracked file, delete for an untracked one.
func RevertPath(dir string, f ChangedFile) error {
	if !f.Tracked {
		abs, _, err := sandbox.ResolveRepoPathAllowNew(dir, f.Path)
		if err != nil {
			return err
		}
		return removeFile(abs)
	}
	cmd := exec.Command("git", "checkout", "--", f.Path)
	cmd.Dir = dir
	cmd.Env = sandbox.EnvOverrides()
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout -- %s: %s: %w", f.Path, strings.TrimSpace(string(out)), err)
	}
	return nil
}
