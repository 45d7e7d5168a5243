package llmclient

import (
	"context"
	"fmt"

	"github.com/cameronspears/cosmos/internal/suggestion"
)

// Router dispatches each call to the backend whose tier matches the
// requested model, so the rest of the harness can depend on a single
// LLMClient while Speed-tier calls actually run against OpenCode and
// Smart-tier calls (including the independent review and generation
// escalations) run against Copilot.
type Router struct {
	Speed      LLMClient
	Smart      LLMClient
	SpeedModel ModelRef
	SmartModel ModelRef
}

func (r *Router) backendFor(model ModelRef) (LLMClient, error) {
	switch model.String() {
	case r.SpeedModel.String():
		return r.Speed, nil
	case r.SmartModel.String():
		return r.Smart, nil
	default:
		return nil, fmt.Errorf("no backend registered for model %q", model.String())
	}
}

func (r *Router) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model ModelRef) (FixContentResult, error) {
	backend, err := r.backendFor(model)
	if err != nil {
		return FixContentResult{}, err
	}
	return backend.GenerateFixContent(ctx, target, current, s, preview, isNew, model)
}

func (r *Router) GenerateMultiFileFix(ctx context.Context, inputs []FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model ModelRef) (MultiFileFixResult, error) {
	backend, err := r.backendFor(model)
	if err != nil {
		return MultiFileFixResult{}, err
	}
	return backend.GenerateMultiFileFix(ctx, inputs, s, preview, model)
}

func (r *Router) VerifyChangesBounded(ctx context.Context, files []FileInput, iteration int, fixedTitles []string, fixContext string, model ModelRef) (ReviewResult, error) {
	backend, err := r.backendFor(model)
	if err != nil {
		return ReviewResult{}, err
	}
	return backend.VerifyChangesBounded(ctx, files, iteration, fixedTitles, fixContext, model)
}

func (r *Router) FixReviewFindings(ctx context.Context, path, current string, original *string, findings []Finding, iteration int, fixedTitles []string, model ModelRef) (FixContentResult, error) {
	backend, err := r.backendFor(model)
	if err != nil {
		return FixContentResult{}, err
	}
	return backend.FixReviewFindings(ctx, path, current, original, findings, iteration, fixedTitles, model)
}
