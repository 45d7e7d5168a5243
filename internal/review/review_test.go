package review

import (
	"testing"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
)

func TestFilterBlocking_DropsNonBlockingSeverity(t *testing.T) {
	findings := []llmclient.Finding{
		{Title: "nit", Severity: config.SeverityInfo, Recommended: true},
		{Title: "real bug", Severity: config.SeverityCritical, Recommended: true},
	}
	blocking := filterBlocking(findings, []config.Severity{config.SeverityCritical}, false)
	if len(blocking) != 1 || blocking[0].Title != "real bug" {
		t.Errorf("unexpected blocking set: %+v", blocking)
	}
}

func TestFilterBlocking_DropsFindingsNotRecommended(t *testing.T) {
	findings := []llmclient.Finding{
		{Title: "observation only", Severity: config.SeverityCritical, Recommended: false},
		{Title: "real bug", Severity: config.SeverityCritical, Recommended: true},
	}
	blocking := filterBlocking(findings, []config.Severity{config.SeverityCritical}, false)
	if len(blocking) != 1 || blocking[0].Title != "real bug" {
		t.Errorf("expected non-recommended finding dropped, got: %+v", blocking)
	}
}

func TestFilterBlocking_DropsCompilerFindingsOnceCompilerCheckPasses(t *testing.T) {
	findings := []llmclient.Finding{
		{Title: "type error", Severity: config.SeverityCritical, Category: "compiler", Recommended: true},
		{Title: "missing import of std::fmt", Severity: config.SeverityCritical, Category: "logic", Recommended: true},
		{Title: "`Frobnicator` is undefined", Severity: config.SeverityCritical, Category: "logic", Recommended: true},
		{Title: "logic bug", Severity: config.SeverityCritical, Category: "logic", Recommended: true},
	}
	blocking := filterBlocking(findings, []config.Severity{config.SeverityCritical}, true)
	if len(blocking) != 1 || blocking[0].Title != "logic bug" {
		t.Errorf("expected compiler-shaped findings dropped, got: %+v", blocking)
	}
}

func TestFilterBlocking_KeepsCompilerFindingWhenCompilerCheckHasNotPassed(t *testing.T) {
	findings := []llmclient.Finding{
		{Title: "type error", Severity: config.SeverityCritical, Category: "compiler", Recommended: true},
	}
	blocking := filterBlocking(findings, []config.Severity{config.SeverityCritical}, false)
	if len(blocking) != 1 {
		t.Errorf("expected compiler finding kept, got: %+v", blocking)
	}
}

func TestCompilerQuickCheckPassed(t *testing.T) {
	a := &diagnostics.AttemptDiagnostics{
		QuickCheckStatus: diagnostics.QuickCheckPassed,
		QuickCheckLabel:  "cargo check --all-targets",
	}
	if !compilerQuickCheckPassed(a) {
		t.Error("expected cargo check pass to count as a compiler quick check")
	}

	a.QuickCheckLabel = "pnpm test"
	if compilerQuickCheckPassed(a) {
		t.Error("a test runner is not compiler-shaped")
	}

	a.QuickCheckLabel = "cargo check"
	a.QuickCheckStatus = diagnostics.QuickCheckFailed
	if compilerQuickCheckPassed(a) {
		t.Error("a failed quick check never suppresses findings")
	}
}
