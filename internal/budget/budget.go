// Package budget implements the harness's two-dimensional (time, cost)
// budget policy: a monotonic clock over the whole run, a dynamic pre-call
// guard, and a per-attempt partitioner with tapering weights.
package budget

import (
	"time"

	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
)

// costOverrunTolerance absorbs provider-side accounting jitter.
const costOverrunTolerance = 2.5e-4

// Controller tracks elapsed time and accumulated cost for one run and
// enforces the budget on every LLM call boundary.
type Controller struct {
	startedAt      time.Time
	maxTotalMs     int64
	maxTotalCostUSD float64
	now            func() time.Time
}

// New returns a Controller whose clock starts now.
func New(maxTotalMs int64, maxTotalCostUSD float64) *Controller {
	return &Controller{
		startedAt:       time.Now(),
		maxTotalMs:      maxTotalMs,
		maxTotalCostUSD: maxTotalCostUSD,
		now:             time.Now,
	}
}

// ElapsedMs returns milliseconds since the controller started.
func (c *Controller) ElapsedMs() int64 {
	return c.now().Sub(c.startedAt).Milliseconds()
}

// RemainingMs returns the time budget left, never negative.
func (c *Controller) RemainingMs() int64 {
	r := c.maxTotalMs - c.ElapsedMs()
	if r < 0 {
		return 0
	}
	return r
}

// RemainingCostUSD returns the cost budget left given accumulated usage,
// never negative.
func (c *Controller) RemainingCostUSD(usage llmclient.Usage) float64 {
	r := c.maxTotalCostUSD - usage.CostUSD
	if r < 0 {
		return 0
	}
	return r
}

// Exhausted reports whether the run-level budget has been crossed.
func (c *Controller) Exhausted(usage llmclient.Usage) *diagnostics.FailReason {
	if c.ElapsedMs() >= c.maxTotalMs {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "run time budget exhausted"}
	}
	if usage.CostUSD >= c.maxTotalCostUSD+costOverrunTolerance {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "run cost budget exhausted"}
	}
	return nil
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampI64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GuardBeforeLLMCall refuses to start an LLM call when the remaining time or
// cost buffer is too thin to safely absorb one more call's overshoot.
func (c *Controller) GuardBeforeLLMCall(usage llmclient.Usage) *diagnostics.FailReason {
	timeBuffer := clampI64(int64(0.15*float64(c.maxTotalMs)), 1200, 6000)
	if c.RemainingMs() < timeBuffer {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "remaining time below pre-call buffer"}
	}
	costBuffer := clampF(0.02*c.maxTotalCostUSD, 1.5e-4, 3e-3)
	if c.RemainingCostUSD(usage) < costBuffer {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "remaining cost below pre-call buffer"}
	}
	return nil
}

// Per-stage timeout ceilings.
const (
	generationCeilingMs = 75_000
	reviewCeilingMs     = 90_000
	repairFixCeilingMs  = 70_000
	callSlackMs         = 250
)

type Stage string

const (
	StageGeneration Stage = "generation"
	StageReview     Stage = "review"
	StageRepairFix  Stage = "repair_fix"
)

// TimeoutMsForNextLLMCall returns the timeout to apply to the next call of
// the given stage: remaining time minus slack, clamped by the stage ceiling.
func (c *Controller) TimeoutMsForNextLLMCall(stage Stage) int64 {
	timeout := c.RemainingMs() - callSlackMs
	if timeout < 0 {
		timeout = 0
	}
	var ceiling int64
	switch stage {
	case StageReview:
		ceiling = reviewCeilingMs
	case StageRepairFix:
		ceiling = repairFixCeilingMs
	default:
		ceiling = generationCeilingMs
	}
	if timeout > ceiling {
		timeout = ceiling
	}
	return timeout
}

// ReservationCheck blocks a quick-check auto-repair LLM call if doing so
// would leave too little budget for the final independent review.
func (c *Controller) ReservationCheck(usage llmclient.Usage, reserveMs int64, reserveCostUSD float64) *diagnostics.FailReason {
	if c.RemainingMs() < reserveMs {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "remaining time below independent-review reservation"}
	}
	if c.RemainingCostUSD(usage) < reserveCostUSD {
		return &diagnostics.FailReason{Code: diagnostics.CodeBudgetExceeded, Gate: "budget", Message: "remaining cost below independent-review reservation"}
	}
	return nil
}
