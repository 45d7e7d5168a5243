package quickcheck

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// FastPathKind names a repair shortcut that bypasses an LLM call entirely.
type FastPathKind string

const (
	FastPathNone     FastPathKind = ""
	FastPathPrettier FastPathKind = "prettier_write"
	FastPathESLint   FastPathKind = "eslint_fix"
)

// DetectFastPath inspects a changed file's failing quick-check command and
// the repo's package.json to decide whether a formatter/linter autofix
// command can resolve the failure without spending an LLM call.
func DetectFastPath(repoDir string, cmd Command) FastPathKind {
	label := strings.ToLower(cmd.String())
	hasPrettier, _ := HasJSDep(repoDir, "prettier")
	if hasPrettier && strings.Contains(label, "prettier") && !strings.Contains(label, "--write") {
		return FastPathPrettier
	}
	hasESLint, _ := HasJSDep(repoDir, "eslint")
	if hasESLint && strings.Contains(label, "eslint") && !strings.Contains(label, "--fix") {
		return FastPathESLint
	}
	return FastPathNone
}

// FastPathCommand builds the autofix command for kind, to run in place of
// an LLM repair call.
func FastPathCommand(kind FastPathKind, original Command) Command {
	switch kind {
	case FastPathPrettier:
		return Command{Program: "npx", Args: []string{"prettier", "--write", "."}}
	case FastPathESLint:
		args := append([]string{}, original.Args...)
		args = append(args, "--fix")
		return Command{Program: original.Program, Args: args}
	default:
		return original
	}
}

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

var majorVersionPattern = regexp.MustCompile(`\d+`)

// HasJSDep reports whether repoDir's package.json declares name as a
// dependency or devDependency, and its best-effort major version.
func HasJSDep(repoDir, name string) (present bool, majorVersion int) {
	data, err := os.ReadFile(filepath.Join(repoDir, "package.json"))
	if err != nil {
		return false, 0
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false, 0
	}
	spec, ok := pkg.Dependencies[name]
	if !ok {
		spec, ok = pkg.DevDependencies[name]
	}
	if !ok {
		return false, 0
	}
	m := majorVersionPattern.FindString(spec)
	major, _ := strconv.Atoi(m)
	return true, major
}
