// Package opencodebackend implements llmclient.LLMClient against the
// OpenCode SDK: one ephemeral session per call, a JSON-schema instruction
// appended to the prompt, and the session's final message parsed back into
// the structured result the harness expects.
package opencodebackend

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	opencode "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"

	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// Client wraps an OpenCode SDK client to implement llmclient.LLMClient.
type Client struct {
	sdk       *opencode.Client
	directory string
}

// Config configures the SDK client's transport.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Directory string
}

// New builds a Client against an already-reachable OpenCode server.
func New(cfg Config) *Client {
	opts := []option.RequestOption{option.WithBaseURL(cfg.BaseURL)}
	if cfg.Password != "" {
		user := cfg.Username
		if user == "" {
			user = "opencode"
		}
		auth := base64.StdEncoding.EncodeToString([]byte(user + ":" + cfg.Password))
		opts = append(opts, option.WithHeader("Authorization", "Basic "+auth))
	}
	return &Client{sdk: opencode.NewClient(opts...), directory: cfg.Directory}
}

var _ llmclient.LLMClient = (*Client)(nil)

func (c *Client) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model llmclient.ModelRef) (llmclient.FixContentResult, error) {
	prompt := fixContentPrompt(target, current, s, preview, isNew)
	raw, usage, err := c.promptJSON(ctx, "generate-fix", model, prompt)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	parsed, err := llmclient.ParseJSON[fixContentPayload](raw)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	return llmclient.FixContentResult{NewContent: parsed.NewContent, ModifiedAreas: parsed.areas(), Usage: usage}, nil
}

func (c *Client) GenerateMultiFileFix(ctx context.Context, inputs []llmclient.FileInput, s suggestion.Suggestion, preview suggestion.FixPreview, model llmclient.ModelRef) (llmclient.MultiFileFixResult, error) {
	prompt := multiFileFixPrompt(inputs, s, preview)
	raw, usage, err := c.promptJSON(ctx, "generate-multi-fix", model, prompt)
	if err != nil {
		return llmclient.MultiFileFixResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	parsed, err := llmclient.ParseJSON[multiFileFixPayload](raw)
	if err != nil {
		return llmclient.MultiFileFixResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	return llmclient.MultiFileFixResult{FileEdits: parsed.edits(), Description: parsed.Description, Usage: usage}, nil
}

func (c *Client) VerifyChangesBounded(ctx context.Context, files []llmclient.FileInput, iteration int, fixedTitles []string, fixContext string, model llmclient.ModelRef) (llmclient.ReviewResult, error) {
	prompt := reviewPrompt(files, iteration, fixedTitles, fixContext)
	raw, usage, err := c.promptJSON(ctx, "verify-changes-bounded", model, prompt)
	if err != nil {
		return llmclient.ReviewResult{Usage: usage}, err
	}
	parsed, err := llmclient.ParseJSON[reviewPayload](raw)
	if err != nil {
		return llmclient.ReviewResult{Usage: usage, SchemaFallbackUsed: true}, nil
	}
	return llmclient.ReviewResult{Findings: parsed.findings(), Usage: usage}, nil
}

func (c *Client) FixReviewFindings(ctx context.Context, path, current string, original *string, findings []llmclient.Finding, iteration int, fixedTitles []string, model llmclient.ModelRef) (llmclient.FixContentResult, error) {
	prompt := fixFindingsPrompt(path, current, findings, iteration, fixedTitles)
	raw, usage, err := c.promptJSON(ctx, "fix-review-findings", model, prompt)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	parsed, err := llmclient.ParseJSON[fixContentPayload](raw)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	return llmclient.FixContentResult{NewContent: parsed.NewContent, ModifiedAreas: parsed.areas(), Usage: usage}, nil
}

// promptJSON runs one ephemeral session: create, send, parse usage, delete.
func (c *Client) promptJSON(ctx context.Context, label string, model llmclient.ModelRef, prompt string) (string, llmclient.Usage, error) {
	session, err := c.sdk.Session.New(ctx, opencode.SessionNewParams{
		Title:     opencode.F(label),
		Directory: opencode.F(c.directory),
	})
	if err != nil {
		return "", llmclient.Usage{}, fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := c.sdk.Session.Delete(deleteCtx, session.ID, opencode.SessionDeleteParams{Directory: opencode.F(c.directory)}); err != nil {
			slog.Debug("failed to delete opencode session", "session", session.ID, "error", err)
		}
	}()

	resp, err := c.sdk.Session.Prompt(ctx, session.ID, opencode.SessionPromptParams{
		Parts: opencode.F([]opencode.SessionPromptParamsPartUnion{
			opencode.TextPartInputParam{
				Type: opencode.F(opencode.TextPartInputTypeText),
				Text: opencode.F(prompt + jsonOnlyInstruction),
			},
		}),
		Model: opencode.F(opencode.SessionPromptParamsModel{
			ProviderID: opencode.F(model.ProviderID),
			ModelID:    opencode.F(model.ModelID),
		}),
		Directory: opencode.F(c.directory),
	})
	if err != nil {
		return "", llmclient.Usage{}, fmt.Errorf("sending prompt: %w", err)
	}

	content := extractTextContent(resp)
	return content, llmclient.EstimateUsage(len(prompt), len(content), model), nil
}
