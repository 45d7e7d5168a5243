package llmclient

import (
	"context"
	"reflect"

	"github.com/cameronspears/cosmos/internal/suggestion"
	"go.uber.org/mock/gomock"
)

// GomockClient is a gomock.Controller-driven LLMClient double, hand-authored
// in the shape mockgen would generate. It lets a test assert call order
// across the four contract methods (e.g. that review runs after generation
// and before a second review iteration), which the simpler MockClient's
// append-only history doesn't enforce; the repository's tests currently all
// use MockClient.
type GomockClient struct {
	ctrl     *gomock.Controller
	recorder *GomockClientRecorder
}

type GomockClientRecorder struct {
	mock *GomockClient
}

func NewGomockClient(ctrl *gomock.Controller) *GomockClient {
	m := &GomockClient{ctrl: ctrl}
	m.recorder = &GomockClientRecorder{mock: m}
	return m
}

func (m *GomockClient) EXPECT() *GomockClientRecorder {
	return m.recorder
}

func (m *GomockClient) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model ModelRef) (FixContentResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GenerateFixContent", ctx, target, current, s, preview, isNew, model)
	ret0, _ := ret[0].(FixContentResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *GomockClientRecorder) GenerateFixContent(ctx, target, current, s, preview, isNew, model any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GenerateFixContent", reflect.TypeOf((*GomockClient)(nil).GenerateFixContent), ctx, target, current, s, preview, isNew, model)
}

func (m *GomockClient) GenerateMultiFileFix(ctx context.Context, inputs []FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model ModelRef) (MultiFileFixResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GenerateMultiFileFix", ctx, inputs, s, preview, model)
	ret0, _ := ret[0].(MultiFileFixResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *GomockClientRecorder) GenerateMultiFileFix(ctx, inputs, s, preview, model any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GenerateMultiFileFix", reflect.TypeOf((*GomockClient)(nil).GenerateMultiFileFix), ctx, inputs, s, preview, model)
}

func (m *GomockClient) VerifyChangesBounded(ctx context.Context, files []FileInput, iteration int, fixedTitles []string, fixContext string, model ModelRef) (ReviewResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "VerifyChangesBounded", ctx, files, iteration, fixedTitles, fixContext, model)
	ret0, _ := ret[0].(ReviewResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *GomockClientRecorder) VerifyChangesBounded(ctx, files, iteration, fixedTitles, fixContext, model any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "VerifyChangesBounded", reflect.TypeOf((*GomockClient)(nil).VerifyChangesBounded), ctx, files, iteration, fixedTitles, fixContext, model)
}

func (m *GomockClient) FixReviewFindings(ctx context.Context, path, current string, original *string, findings []Finding, iteration int, fixedTitles []string, model ModelRef) (FixContentResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "FixReviewFindings", ctx, path, current, original, findings, iteration, fixedTitles, model)
	ret0, _ := ret[0].(FixContentResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

func (mr *GomockClientRecorder) FixReviewFindings(ctx, path, current, original, findings, iteration, fixedTitles, model any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "FixReviewFindings", reflect.TypeOf((*GomockClient)(nil).FixReviewFindings), ctx, path, current, original, findings, iteration, fixedTitles, model)
}

var _ LLMClient = (*GomockClient)(nil)
