package harness

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/quickcheck"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

func newTestRepo(t *testing.T) string {
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
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-q", "-m", "initial")
	return dir
}

func baseDeps(llm llmclient.LLMClient) Deps {
	cfg := config.InteractiveStrict()
	cfg.QuickChecksMode = config.QuickChecksDisabled
	cfg.EnableQuickCheckBaseline = false
	return Deps{
		LLM:    llm,
		Models: config.ModelsConfig{Speed: "anthropic/claude-sonnet", Smart: "anthropic/claude-opus"},
		Cfg:    cfg,
	}
}

func TestImplementValidatedSuggestion_SingleAttemptPasses(t *testing.T) {
	repo := newTestRepo(t)
	mock := llmclient.NewMockClient()
	mock.FixContentResult = llmclient.FixContentResult{NewContent: "package main\n\nfunc main() { println(\"hi\") }\n"}

	deps := baseDeps(mock)
	deps.SourceRepo = repo

	s := suggestion.Suggestion{
		ID:            "sugg-1",
		Summary:       "Add a greeting print statement to the main entrypoint.",
		AffectedFiles: []string{"main.go"},
		State:         suggestion.Validated,
	}

	result, err := ImplementValidatedSuggestion(context.Background(), s, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Diagnostics.Passed {
		t.Fatalf("expected run to pass, fail reasons: %+v", result.Diagnostics.FailReasons)
	}
	if len(result.Changes) != 1 || result.Changes[0].Path != "main.go" {
		t.Fatalf("unexpected changes: %+v", result.Changes)
	}
	if result.ReportPath == "" {
		t.Error("expected a report path to be recorded")
	}
	if _, err := os.Stat(result.ReportPath); err != nil {
		t.Errorf("expected report file to exist: %v", err)
	}
}

func TestImplementValidatedSuggestion_RejectsUnvalidatedSuggestion(t *testing.T) {
	mock := llmclient.NewMockClient()
	deps := baseDeps(mock)
	deps.SourceRepo = newTestRepo(t)

	s := suggestion.Suggestion{ID: "sugg-2", State: suggestion.Proposed, AffectedFiles: []string{"main.go"}}
	if _, err := ImplementValidatedSuggestion(context.Background(), s, deps); err == nil {
		t.Error("expected an error for a non-validated suggestion")
	}
}

func TestImplementValidatedSuggestion_OutOfScopeEditFailsEveryAttempt(t *testing.T) {
	repo := newTestRepo(t)
	if err := os.WriteFile(filepath.Join(repo, "other.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = repo
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v: %s", err, out)
	}
	cmd = exec.Command("git", "commit", "-q", "-m", "add other")
	cmd.Dir = repo
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v: %s", err, out)
	}

	mock := llmclient.NewMockClient()
	mock.MultiFileResult = llmclient.MultiFileFixResult{
		FileEdits: []llmclient.FileEdit{
			{Path: "other.go", NewContent: "package main\n\n// edited\n"},
		},
		Description: "This change updates a file outside the approved scope entirely.",
	}

	deps := baseDeps(mock)
	deps.SourceRepo = repo
	deps.Cfg.MaxAttempts = 1

	s := suggestion.Suggestion{
		ID:            "sugg-3",
		Summary:       "Attempt a fix that the model will misdirect outside scope.",
		AffectedFiles: []string{"main.go", "README.md"},
		State:         suggestion.Validated,
	}

	result, err := ImplementValidatedSuggestion(context.Background(), s, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Diagnostics.Passed {
		t.Fatal("expected the run to fail when every edit lands out of scope")
	}
}

func TestImplementValidatedSuggestion_GuardRefusesCallsOnThinCostBudget(t *testing.T) {
	repo := newTestRepo(t)
	mock := llmclient.NewMockClient()

	deps := baseDeps(mock)
	deps.SourceRepo = repo
	deps.Cfg.MaxAttempts = 1
	// Below the guard's minimum cost buffer but above zero, so the run is not
	// exhausted outright — the pre-call guard must be what refuses.
	deps.Cfg.MaxTotalCostUSD = 0.0001

	s := suggestion.Suggestion{
		ID:            "sugg-guard",
		Summary:       "Add a greeting print statement to the main entrypoint.",
		AffectedFiles: []string{"main.go"},
		State:         suggestion.Validated,
	}

	result, err := ImplementValidatedSuggestion(context.Background(), s, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Diagnostics.Passed {
		t.Fatal("expected the run to fail when the guard refuses every call")
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no LLM call to start, observed %d", mock.CallCount())
	}
	found := false
	for _, a := range result.Diagnostics.Attempts {
		for _, fr := range a.FailReasons {
			if fr.Code == diagnostics.CodeBudgetExceeded {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected a budget_exceeded fail reason, got: %+v", result.Diagnostics.FailReasons)
	}
}

func TestImplementValidatedSuggestion_QuickCheckFailureIsReported(t *testing.T) {
	repo := newTestRepo(t)
	mock := llmclient.NewMockClient()
	mock.FixContentResult = llmclient.FixContentResult{NewContent: "package main\n\nfunc main() { println(\"hi\") }\n"}

	deps := baseDeps(mock)
	deps.SourceRepo = repo
	deps.Cfg.MaxAttempts = 1
	deps.Cfg.QuickChecksMode = config.QuickChecksStrictAuto
	deps.Cfg.RequireQuickCheckDetectable = true
	deps.QuickCheckCmd = quickcheck.Command{Shell: "exit 1"}

	s := suggestion.Suggestion{
		ID:            "sugg-4",
		Summary:       "Add a greeting print statement to the main entrypoint.",
		AffectedFiles: []string{"main.go"},
		State:         suggestion.Validated,
	}

	result, err := ImplementValidatedSuggestion(context.Background(), s, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Diagnostics.Passed {
		t.Fatal("expected the run to fail when the quick check always fails")
	}
	found := false
	for _, fr := range result.Diagnostics.FailReasons {
		if fr.Code == diagnostics.CodeQuickCheckFailed {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a quick_check_failed reason, got: %+v", result.Diagnostics.FailReasons)
	}
}
