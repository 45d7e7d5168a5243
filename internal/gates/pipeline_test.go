package gates

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

func newRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func testSuggestion(files ...string) suggestion.Suggestion {
	return suggestion.Suggestion{ID: "s1", Summary: "test", AffectedFiles: files, State: suggestion.Validated}
}

func TestRunDeterministic_NonEmptyDiffViolation(t *testing.T) {
	dir := newRepo(t)
	pipe := &Pipeline{Dir: dir, Cfg: config.InteractiveStrict(), Attempt: &diagnostics.AttemptDiagnostics{}}
	res := pipe.RunDeterministic(testSuggestion("a.go"), nil)
	if res.Passed {
		t.Fatal("expected an unchanged sandbox to fail non_empty_diff")
	}
	if len(res.FailReasons) != 1 || res.FailReasons[0].Code != diagnostics.CodeNonEmptyDiffViolation {
		t.Fatalf("expected non_empty_diff_violation, got %+v", res.FailReasons)
	}
}

func TestRunDeterministic_ScopeViolationReverted(t *testing.T) {
	dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc main() { println(\"hi\") }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package main\n\n// stray edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pipe := &Pipeline{Dir: dir, Cfg: config.InteractiveStrict(), Attempt: &diagnostics.AttemptDiagnostics{}}
	res := pipe.RunDeterministic(testSuggestion("a.go"), nil)
	if !res.Passed {
		t.Fatalf("expected out-of-scope edit to be best-effort reverted and the in-scope edit to pass, got %+v", res.FailReasons)
	}
	if len(res.ChangedFiles) != 1 || res.ChangedFiles[0].Path != "a.go" {
		t.Fatalf("expected only a.go to remain changed, got %+v", res.ChangedFiles)
	}
	content, err := os.ReadFile(filepath.Join(dir, "b.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "package main\n" {
		t.Fatalf("expected b.go reverted to its original content, got %q", content)
	}
}

func TestRunDeterministic_ScopeViolationAllOutOfScopeEmptiesDiff(t *testing.T) {
	dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package main\n\n// stray edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pipe := &Pipeline{Dir: dir, Cfg: config.InteractiveStrict(), Attempt: &diagnostics.AttemptDiagnostics{}}
	res := pipe.RunDeterministic(testSuggestion("a.go"), nil)
	if res.Passed {
		t.Fatal("expected reverting the only changed file to leave an empty diff")
	}
	if res.FailReasons[0].Code != diagnostics.CodeNonEmptyDiffViolation {
		t.Fatalf("expected non_empty_diff_violation after full revert, got %+v", res.FailReasons)
	}
}

func TestRunDeterministic_DiffBudgetPerFileViolation(t *testing.T) {
	dir := newRepo(t)
	var big string
	for i := 0; i < 300; i++ {
		big += "// padding line\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\n"+big+"func main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.InteractiveStrict()
	cfg.MaxChangedLinesPerFile = 50
	pipe := &Pipeline{Dir: dir, Cfg: cfg, Attempt: &diagnostics.AttemptDiagnostics{}}
	res := pipe.RunDeterministic(testSuggestion("a.go"), nil)
	if res.Passed {
		t.Fatal("expected a per-file line cap violation")
	}
	if res.FailReasons[0].Code != diagnostics.CodeDiffBudgetViolation {
		t.Fatalf("expected diff_budget_violation, got %+v", res.FailReasons)
	}
}

func TestRunDeterministic_SyntaxViolationNoRepair(t *testing.T) {
	dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc broken( {\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pipe := &Pipeline{Dir: dir, Cfg: config.InteractiveStrict(), Attempt: &diagnostics.AttemptDiagnostics{}}
	res := pipe.RunDeterministic(testSuggestion("a.go"), nil)
	if res.Passed {
		t.Fatal("expected malformed Go source to fail the syntax gate with no repair callback")
	}
	if res.FailReasons[0].Code != diagnostics.CodeSyntaxViolation {
		t.Fatalf("expected syntax_violation, got %+v", res.FailReasons)
	}
}

func TestRunDeterministic_SyntaxRepairSucceeds(t *testing.T) {
	dir := newRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package main\n\nfunc broken( {\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.InteractiveStrict()
	cfg.MaxAutoSyntaxFixLoops = 1
	attempt := &diagnostics.AttemptDiagnostics{}
	pipe := &Pipeline{Dir: dir, Cfg: cfg, Attempt: attempt}
	repaired := false
	repair := func(path string) error {
		repaired = true
		return os.WriteFile(filepath.Join(dir, path), []byte("package main\n\nfunc main() {}\n"), 0o644)
	}
	res := pipe.RunDeterministic(testSuggestion("a.go"), repair)
	if !repaired {
		t.Fatal("expected the repair callback to be invoked")
	}
	if !res.Passed {
		t.Fatalf("expected the syntax gate to pass after repair, got %+v", res.FailReasons)
	}
	found := false
	for _, n := range attempt.Notes {
		if n == "syntax_fix_loop_1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a syntax_fix_loop_1 note, got %v", attempt.Notes)
	}
}

func TestRunPlainLanguage(t *testing.T) {
	attempt := &diagnostics.AttemptDiagnostics{}
	if fr := RunPlainLanguage(attempt, "short"); fr == nil || fr.Code != diagnostics.CodePlainLanguageFailure {
		t.Fatalf("expected a too-short description to fail, got %+v", fr)
	}
	ok := "Fixes an off-by-one error when paginating the results list."
	if fr := RunPlainLanguage(attempt, ok); fr != nil {
		t.Fatalf("expected a plain description to pass, got %+v", fr)
	}
	technical := "Fixes a nil pointer dereference by checking the struct before use in the goroutine and mutex path."
	if fr := RunPlainLanguage(attempt, technical); fr == nil {
		t.Fatal("expected more than two technical markers to fail plain_language")
	}
}
