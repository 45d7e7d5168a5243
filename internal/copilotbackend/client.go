// Package copilotbackend implements llmclient.LLMClient against the GitHub
// Copilot SDK. It serves Smart-model calls (such as generation escalations
// and the independent review) while opencodebackend serves the Speed tier;
// the CLI's router picks one of the two per call by model. One ephemeral
// session per call, matching opencodebackend's shape.
package copilotbackend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sdk "github.com/github/copilot-sdk/go"

	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/suggestion"
)

// Client wraps the Copilot SDK to implement llmclient.LLMClient.
type Client struct {
	mu      sync.Mutex
	sdk     *sdk.Client
	started bool
}

// New constructs a Client. Call Start before the first generation call.
func New() *Client {
	return &Client{}
}

// Start initializes the underlying Copilot SDK process.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.sdk = sdk.NewClient(nil)
	if err := c.sdk.Start(ctx); err != nil {
		return fmt.Errorf("starting copilot SDK: %w", err)
	}
	c.started = true
	return nil
}

// Stop shuts down the Copilot SDK process.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Stop()
}

var _ llmclient.LLMClient = (*Client)(nil)

func (c *Client) GenerateFixContent(ctx context.Context, target, current string, s suggestion.Suggestion, preview suggestion.FixPreview, isNew bool, model llmclient.ModelRef) (llmclient.FixContentResult, error) {
	prompt := fixContentPrompt(target, current, s, preview, isNew)
	raw, usage, err := c.prompt(ctx, model, prompt)
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
	raw, usage, err := c.prompt(ctx, model, prompt)
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
	raw, usage, err := c.prompt(ctx, model, prompt)
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
	raw, usage, err := c.prompt(ctx, model, prompt)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	parsed, err := llmclient.ParseJSON[fixContentPayload](raw)
	if err != nil {
		return llmclient.FixContentResult{}, &llmclient.FixGenerationError{Err: err, Usage: usage}
	}
	return llmclient.FixContentResult{NewContent: parsed.NewContent, ModifiedAreas: parsed.areas(), Usage: usage}, nil
}

// prompt runs one ephemeral Copilot session: create, send, destroy.
func (c *Client) prompt(ctx context.Context, model llmclient.ModelRef, text string) (string, llmclient.Usage, error) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return "", llmclient.Usage{}, fmt.Errorf("copilot client not started")
	}

	session, err := c.sdk.CreateSession(ctx, &sdk.SessionConfig{
		Model:               model.ModelID,
		OnPermissionRequest: sdk.PermissionHandler.ApproveAll,
	})
	if err != nil {
		return "", llmclient.Usage{}, fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		if err := session.Destroy(); err != nil {
			slog.Debug("failed to destroy copilot session", "error", err)
		}
	}()

	resp, err := session.SendAndWait(ctx, sdk.MessageOptions{Prompt: text + jsonOnlyInstruction})
	if err != nil {
		return "", llmclient.Usage{}, fmt.Errorf("sending prompt: %w", err)
	}

	var content string
	if resp != nil && resp.Data.Content != nil {
		content = *resp.Data.Content
	}
	return content, llmclient.EstimateUsage(len(text), len(content), model), nil
}
