package cli

import (
	"context"
	"fmt"

	"github.com/cameronspears/cosmos/internal/config"
	"github.com/cameronspears/cosmos/internal/copilotbackend"
	"github.com/cameronspears/cosmos/internal/llmclient"
	"github.com/cameronspears/cosmos/internal/opencodebackend"
)

// newLLMRouter builds the Speed/Smart routed client the harness depends on:
// OpenCode for the Speed tier, Copilot for the Smart tier. The returned
// shutdown func stops the Copilot SDK subprocess and must be deferred by
// every caller.
func newLLMRouter(ctx context.Context, cfg *config.Config, repoRoot string) (llmclient.LLMClient, func(), error) {
	speed := opencodebackend.New(opencodebackend.Config{
		BaseURL:   cfg.OpenCode.URL,
		Username:  cfg.OpenCode.Username,
		Password:  cfg.OpenCode.Password,
		Directory: repoRoot,
	})

	smart := copilotbackend.New()
	if err := smart.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("starting copilot backend: %w", err)
	}

	router := &llmclient.Router{
		Speed:      speed,
		Smart:      smart,
		SpeedModel: llmclient.ParseModelRef(cfg.Models.Speed),
		SmartModel: llmclient.ParseModelRef(cfg.Models.Smart),
	}

	shutdown := func() {
		_ = smart.Stop()
	}
	return router, shutdown, nil
}
