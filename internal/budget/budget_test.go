package budget

import (
	"testing"
	"time"

	"github.com/cameronspears/cosmos/internal/diagnostics"
	"github.com/cameronspears/cosmos/internal/llmclient"
)

func newTestController(maxMs int64, maxCostUSD float64) (*Controller, *time.Time) {
	start := time.Now()
	clock := start
	c := &Controller{startedAt: start, maxTotalMs: maxMs, maxTotalCostUSD: maxCostUSD, now: func() time.Time { return clock }}
	return c, &clock
}

func TestController_ExhaustedByTime(t *testing.T) {
	c, clock := newTestController(10_000, 1.0)
	if fr := c.Exhausted(llmclient.Usage{}); fr != nil {
		t.Fatalf("expected fresh controller to not be exhausted, got %+v", fr)
	}
	*clock = clock.Add(11 * time.Second)
	fr := c.Exhausted(llmclient.Usage{})
	if fr == nil || fr.Code != diagnostics.CodeBudgetExceeded {
		t.Fatalf("expected budget_exceeded after time elapses, got %+v", fr)
	}
}

func TestController_ExhaustedByCost(t *testing.T) {
	c, _ := newTestController(60_000, 1.0)
	fr := c.Exhausted(llmclient.Usage{CostUSD: 1.5})
	if fr == nil || fr.Code != diagnostics.CodeBudgetExceeded {
		t.Fatalf("expected budget_exceeded once cost exceeds the cap, got %+v", fr)
	}
}

func TestController_ExhaustedToleratesSmallCostOverrun(t *testing.T) {
	c, _ := newTestController(60_000, 1.0)
	if fr := c.Exhausted(llmclient.Usage{CostUSD: 1.0001}); fr != nil {
		t.Fatalf("expected a tiny overrun within tolerance to pass, got %+v", fr)
	}
}

func TestController_GuardBeforeLLMCall(t *testing.T) {
	c, clock := newTestController(10_000, 1.0)
	*clock = clock.Add(9 * time.Second)
	if fr := c.GuardBeforeLLMCall(llmclient.Usage{}); fr == nil {
		t.Fatal("expected guard to refuse a call with 1s of time remaining, below the 1.5s time buffer")
	}
}

func TestController_TimeoutMsForNextLLMCall_ClampsToCeiling(t *testing.T) {
	c, _ := newTestController(1_000_000, 10.0)
	if got := c.TimeoutMsForNextLLMCall(StageGeneration); got != generationCeilingMs {
		t.Errorf("generation timeout = %d, want ceiling %d", got, generationCeilingMs)
	}
	if got := c.TimeoutMsForNextLLMCall(StageReview); got != reviewCeilingMs {
		t.Errorf("review timeout = %d, want ceiling %d", got, reviewCeilingMs)
	}
	if got := c.TimeoutMsForNextLLMCall(StageRepairFix); got != repairFixCeilingMs {
		t.Errorf("repair_fix timeout = %d, want ceiling %d", got, repairFixCeilingMs)
	}
}

func TestController_TimeoutMsForNextLLMCall_NeverNegative(t *testing.T) {
	c, clock := newTestController(1_000, 1.0)
	*clock = clock.Add(10 * time.Second)
	if got := c.TimeoutMsForNextLLMCall(StageGeneration); got != 0 {
		t.Errorf("expected a zero timeout once time is exhausted, got %d", got)
	}
}

func TestController_ReservationCheck(t *testing.T) {
	c, clock := newTestController(20_000, 1.0)
	*clock = clock.Add(15 * time.Second)
	if fr := c.ReservationCheck(llmclient.Usage{}, 8_000, 0.01); fr == nil {
		t.Fatal("expected reservation check to block once remaining time is below the reserve")
	}
	c2, _ := newTestController(20_000, 1.0)
	if fr := c2.ReservationCheck(llmclient.Usage{}, 8_000, 0.01); fr != nil {
		t.Fatalf("expected reservation check to pass with a fresh budget, got %+v", fr)
	}
}
