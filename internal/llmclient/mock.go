package llmclient

import (
	"context"
	"sync"

	"github.com/cameronspears/cosmos/internal/suggestion"
)

// MockClient is a test double for LLMClient, following the same
// record-and-replay shape as the harness's other hand-rolled mocks: canned
// results keyed by call kind, plus a call history for assertions.
type MockClient struct {
	mu sync.Mutex

	FixContentResult FixContentResult
	FixContentErr    error

	MultiFileResult MultiFileFixResult
	MultiFileErr    error

	ReviewResult ReviewResult
	ReviewErr    error

	FixFindingsResult FixContentResult
	FixFindingsErr    error

	GenerateCalls []GenerateCall
	ReviewCalls   []ReviewCall
	RepairCalls   []RepairCall
}

type GenerateCall struct {
	Target string
	Model  ModelRef
	IsNew  bool
}

type ReviewCall struct {
	Iteration int
	Model     ModelRef
}

type RepairCall struct {
	Path      string
	Iteration int
	Model     ModelRef
}

func NewMockClient() *MockClient {
	return &MockClient{
		FixContentResult: FixContentResult{NewContent: "mock content"},
	}
}

func (m *MockClient) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model ModelRef) (FixContentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Target: target, Model: model, IsNew: isNew})
	if m.FixContentErr != nil {
		return FixContentResult{}, m.FixContentErr
	}
	return m.FixContentResult, nil
}

func (m *MockClient) GenerateMultiFileFix(ctx context.Context, inputs []FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model ModelRef) (MultiFileFixResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Model: model})
	if m.MultiFileErr != nil {
		return MultiFileFixResult{}, m.MultiFileErr
	}
	return m.MultiFileResult, nil
}

func (m *MockClient) VerifyChangesBounded(ctx context.Context, files []FileInput, iteration int, fixedTitles []string, fixContext string, model ModelRef) (ReviewResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReviewCalls = append(m.ReviewCalls, ReviewCall{Iteration: iteration, Model: model})
	if m.ReviewErr != nil {
		return ReviewResult{}, m.ReviewErr
	}
	return m.ReviewResult, nil
}

func (m *MockClient) FixReviewFindings(ctx context.Context, path, current string, original *string, findings []Finding, iteration int, fixedTitles []string, model ModelRef) (FixContentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RepairCalls = append(m.RepairCalls, RepairCall{Path: path, Iteration: iteration, Model: model})
	if m.FixFindingsErr != nil {
		return FixContentResult{}, m.FixFindingsErr
	}
	return m.FixFindingsResult, nil
}

// CallCount returns the total number of LLM calls this mock has observed,
// across all four contract methods — used by budget-guard tests that only
// care that no further call was attempted after exhaustion.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls) + len(m.ReviewCalls) + len(m.RepairCalls)
}
