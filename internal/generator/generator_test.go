package generator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

func testModels() config.ModelsConfig {
	return config.ModelsConfig{Speed: "anthropic/claude-sonnet", Smart: "anthropic/claude-opus"}
}

func TestGenerateSingleFile_WritesResultAndRecordsCost(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := llmclient.NewMockClient()
	mock.FixContentResult = llmclient.FixContentResult{NewContent: "package main\n\nfunc main() {}\n", Usage: llmclient.Usage{CostUSD: 0.01}}

	g := New(mock, testModels(), config.InteractiveStrict())
	a := &diagnostics.AttemptDiagnostics{}
	s := suggestion.Suggestion{AffectedFiles: []string{"main.go"}, State: suggestion.Validated}

	if err := g.GenerateSingleFile(context.Background(), dir, "main.go", s, suggestion.FixPreview{}, a); err != nil {
		t.Fatalf("GenerateSingleFile: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != mock.FixContentResult.NewContent {
		t.Errorf("file content = %q, want %q", got, mock.FixContentResult.NewContent)
	}
	if a.AttemptCostUSD != 0.01 {
		t.Errorf("AttemptCostUSD = %v, want 0.01", a.AttemptCostUSD)
	}
	if len(a.LLMCalls) != 1 || a.LLMCalls[0].Kind != diagnostics.CallGeneration {
		t.Errorf("expected one recorded generation call, got %+v", a.LLMCalls)
	}
}

func TestGenerateSingleFile_RejectsOutOfScopeTarget(t *testing.T) {
	dir := t.TempDir()
	mock := llmclient.NewMockClient()
	g := New(mock, testModels(), config.InteractiveStrict())
	a := &diagnostics.AttemptDiagnostics{}
	s := suggestion.Suggestion{AffectedFiles: []string{"main.go"}, State: suggestion.Validated}

	err := g.GenerateSingleFile(context.Background(), dir, "other.go", s, suggestion.FixPreview{}, a)
	if err != ErrOutOfScope {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if len(mock.GenerateCalls) != 0 {
		t.Error("expected no LLM call for an out-of-scope target")
	}
}

func TestGenerateSingleFile_EscalatesOnAnchorError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mock := &anchorFailOnceClient{MockClient: llmclient.NewMockClient()}
	mock.FixContentResult = llmclient.FixContentResult{NewContent: "package main\n\n// fixed\n"}

	g := New(mock, testModels(), config.InteractiveStrict())
	a := &diagnostics.AttemptDiagnostics{}
	s := suggestion.Suggestion{AffectedFiles: []string{"main.go"}, State: suggestion.Validated}

	if err := g.GenerateSingleFile(context.Background(), dir, "main.go", s, suggestion.FixPreview{}, a); err != nil {
		t.Fatalf("GenerateSingleFile: %v", err)
	}
	if len(mock.GenerateCalls) != 2 {
		t.Fatalf("expected an initial call plus one escalated retry, got %d calls", len(mock.GenerateCalls))
	}
	if mock.GenerateCalls[1].Model != llmclient.ForTier(testModels(), config.ModelSmart) {
		t.Errorf("expected the retry to use the smart tier, got %v", mock.GenerateCalls[1].Model)
	}
}

// anchorFailOnceClient fails the first GenerateFixContent call with an
// anchor-tracking error, then succeeds — exercising the generator's
// Speed-to-Smart escalation path.
type anchorFailOnceClient struct {
	*llmclient.MockClient
	failed bool
}

func (c *anchorFailOnceClient) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model llmclient.ModelRef) (llmclient.FixContentResult, error) {
	if !c.failed {
		c.failed = true
		c.MockClient.GenerateCalls = append(c.MockClient.GenerateCalls, llmclient.GenerateCall{Target: target, Model: model, IsNew: isNew})
		return llmclient.FixContentResult{}, errAnchorNotFound
	}
	return c.MockClient.GenerateFixContent(ctx, target, current, s, preview, isNew, model)
}

var errAnchorNotFound = &anchorError{}

type anchorError struct{}

func (e *anchorError) Error() string { return "anchor not found in current file content" }

func TestGenerateMultiFile_RejectsEditOutsideScope(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.go", "b.go"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("package main\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mock := llmclient.NewMockClient()
	mock.MultiFileResult = llmclient.MultiFileFixResult{
		FileEdits: []llmclient.FileEdit{{Path: "c.go", NewContent: "package main\n"}},
	}

	g := New(mock, testModels(), config.InteractiveStrict())
	a := &diagnostics.AttemptDiagnostics{}
	s := suggestion.Suggestion{AffectedFiles: []string{"a.go", "b.go"}, State: suggestion.Validated}

	_, err := g.GenerateMultiFile(context.Background(), dir, []string{"a.go", "b.go"}, s, suggestion.FixPreview{}, a)
	if err != ErrOutOfScope {
		t.Fatalf("expected ErrOutOfScope for an edit landing outside the validated scope, got %v", err)
	}
}
