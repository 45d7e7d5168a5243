package llmclient

import (
	"context"

	"github.com/cameronspears/cosmos/internal/suggestion"
)

// LLMClient is the dependency-injected contract every generation/review call
// in the harness goes through. Every method takes an explicit model and
// timeout — the Budget Controller decides both before the call starts, and
// the client must respect ctx's deadline rather than its own defaults.
type LLMClient interface {
	// GenerateFixContent produces a single-file edit. isNew indicates target
	// does not yet exist in the sandbox (current is empty in that case).
	GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model ModelRef) (FixContentResult, error)

	// GenerateMultiFileFix produces edits across several files in one call.
	GenerateMultiFileFix(ctx context.Context, inputs []FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model ModelRef) (MultiFileFixResult, error)

	// VerifyChangesBounded runs an adversarial review pass over the current
	// diff. fixedTitles lists findings from prior iterations that have
	// already been addressed, so the model does not re-report them.
	VerifyChangesBounded(ctx context.Context, files []FileInput, iteration int, fixedTitles []string, fixContext string, model ModelRef) (ReviewResult, error)

	// FixReviewFindings repairs one file against a set of blocking findings.
	FixReviewFindings(ctx context.Context, path, current string, original *string, findings []Finding, iteration int, fixedTitles []string, model ModelRef) (FixContentResult, error)
}

// FileContent pairs a path with its before/after content. No LLMClient
// method takes it: review and repair calls send FileInput values instead.
type FileContent struct {
	Path string
	Old  string
	New  string
}
