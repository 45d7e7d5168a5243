package budget

import (
	"testing"

	"github.com/cameronspears/cosmos/internal/llmclient"
)

func TestAttemptWeights(t *testing.T) {
	cases := []struct {
		n    int
		want []float64
	}{
		{1, []float64{1.0}},
		{2, []float64{0.80, 0.20}},
		{3, []float64{0.70, 0.20, 0.10}},
	}
	for _, tc := range cases {
		got := attemptWeights(tc.n)
		if len(got) != len(tc.want) {
			t.Fatalf("attemptWeights(%d) = %v, want %v", tc.n, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("attemptWeights(%d)[%d] = %v, want %v", tc.n, i, got[i], tc.want[i])
			}
		}
	}
}

func TestAttemptWeights_TailSplitsEvenlyAndSumsToOne(t *testing.T) {
	w := attemptWeights(5)
	if w[0] != 0.55 || w[1] != 0.25 {
		t.Fatalf("expected head weights 0.55/0.25, got %v", w[:2])
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("attempt weights should sum to ~1.0, got %v (sum=%v)", w, sum)
	}
}

func TestAttemptCaps_AppliesFloorsWhenBudgetAllows(t *testing.T) {
	c, _ := newTestController(100_000, 1.0)
	caps := c.AttemptCaps(llmclient.Usage{}, 4)
	if len(caps) != 4 {
		t.Fatalf("expected 4 caps, got %d", len(caps))
	}
	// attempt 0 gets 0.55 * 100_000ms = 55_000ms, comfortably above the floor.
	if caps[0].MaxMs != 55_000 {
		t.Errorf("caps[0].MaxMs = %d, want 55000", caps[0].MaxMs)
	}
	// the smallest tail slice (0.10 * 100_000 = 10_000) sits right at minFloorMs.
	last := caps[len(caps)-1]
	if last.MaxMs < minFloorMs {
		t.Errorf("tail attempt cap %d should never fall below the floor %d", last.MaxMs, minFloorMs)
	}
}

func TestAttemptCaps_StarvedRunKeepsPositiveFirstCap(t *testing.T) {
	c, _ := newTestController(30_000, 0.05)
	caps := c.AttemptCaps(llmclient.Usage{}, 3)
	var totalMs int64
	var totalCost float64
	for _, cap := range caps {
		totalMs += cap.MaxMs
		totalCost += cap.MaxCostUSD
	}
	// Floors can push the total slightly above remaining budget for a
	// starved run; this only asserts that the first attempt still gets a
	// positive cap.
	if caps[0].MaxMs <= 0 || caps[0].MaxCostUSD <= 0 {
		t.Fatalf("expected a positive first-attempt cap, got %+v", caps[0])
	}
}

func TestAttemptCaps_SkipsFloorWhenBudgetItselfIsBelowFloor(t *testing.T) {
	c, _ := newTestController(1_000, 0.0001)
	caps := c.AttemptCaps(llmclient.Usage{}, 1)
	if caps[0].MaxMs >= minFloorMs {
		t.Errorf("a run-level budget already below the floor should not be inflated up to it, got %d", caps[0].MaxMs)
	}
}
