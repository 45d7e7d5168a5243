package llmclient

import (
	"context"
	"testing"

	"github.com/cameronspears/cosmos/internal/suggestion"
)

func TestRouter_DispatchesByModel(t *testing.T) {
	speed := NewMockClient()
	speed.FixContentResult = FixContentResult{NewContent: "from speed"}
	smart := NewMockClient()
	smart.FixContentResult = FixContentResult{NewContent: "from smart"}

	r := &Router{
		Speed:      speed,
		Smart:      smart,
		SpeedModel: ParseModelRef("anthropic/claude-sonnet"),
		SmartModel: ParseModelRef("anthropic/claude-opus"),
	}

	got, err := r.GenerateFixContent(context.Background(), "main.go", "", suggestion.Suggestion{}, suggestion.FixPreview{}, false, r.SpeedModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NewContent != "from speed" {
		t.Errorf("expected the speed backend to handle the speed model, got %q", got.NewContent)
	}
	if len(speed.GenerateCalls) != 1 || len(smart.GenerateCalls) != 0 {
		t.Errorf("expected exactly one call routed to speed, got speed=%d smart=%d", len(speed.GenerateCalls), len(smart.GenerateCalls))
	}

	got, err = r.GenerateFixContent(context.Background(), "main.go", "", suggestion.Suggestion{}, suggestion.FixPreview{}, false, r.SmartModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.NewContent != "from smart" {
		t.Errorf("expected the smart backend to handle the smart model, got %q", got.NewContent)
	}
	if len(smart.GenerateCalls) != 1 {
		t.Errorf("expected exactly one call routed to smart, got %d", len(smart.GenerateCalls))
	}
}

func TestRouter_UnknownModelIsAnError(t *testing.T) {
	r := &Router{
		Speed:      NewMockClient(),
		Smart:      NewMockClient(),
		SpeedModel: ParseModelRef("anthropic/claude-sonnet"),
		SmartModel: ParseModelRef("anthropic/claude-opus"),
	}

	_, err := r.GenerateFixContent(context.Background(), "main.go", "", suggestion.Suggestion{}, suggestion.FixPreview{}, false, ParseModelRef("anthropic/claude-haiku"))
	if err == nil {
		t.Fatal("expected an error for a model with no registered backend")
	}
}

func TestRouter_RoutesReviewAndRepairCalls(t *testing.T) {
	smart := NewMockClient()
	smart.ReviewResult = ReviewResult{Findings: []Finding{{Title: "stale comment"}}}
	r := &Router{
		Speed:      NewMockClient(),
		Smart:      smart,
		SpeedModel: ParseModelRef("anthropic/claude-sonnet"),
		SmartModel: ParseModelRef("anthropic/claude-opus"),
	}

	res, err := r.VerifyChangesBounded(context.Background(), nil, 0, nil, "", r.SmartModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Findings) != 1 || res.Findings[0].Title != "stale comment" {
		t.Errorf("expected the smart backend's canned review result to pass through, got %+v", res.Findings)
	}
	if len(smart.ReviewCalls) != 1 {
		t.Errorf("expected one review call recorded on the smart backend, got %d", len(smart.ReviewCalls))
	}
}
