package budget

import "github.com/cameronspears/cosmos/internal/llmclient"

// minFloorMs and minFloorCostUSD are the floors below which a late attempt
// could not run even one real generation+gate pass.
const (
	minFloorMs      int64   = 10_000
	minFloorCostUSD float64 = 0.0025
)

// attemptWeights returns the tapering weight table for n remaining
// attempts: attempt 1 is favored, later attempts split what's left,
// shrinking per attempt.
func attemptWeights(n int) []float64 {
	switch {
	case n <= 1:
		return []float64{1.0}
	case n == 2:
		return []float64{0.80, 0.20}
	case n == 3:
		return []float64{0.70, 0.20, 0.10}
	default:
		w := make([]float64, n)
		w[0] = 0.55
		w[1] = 0.25
		tail := 0.20 / float64(n-2)
		for i := 2; i < n; i++ {
			w[i] = tail
		}
		return w
	}
}

// AttemptCap is the per-attempt (time, cost) partition computed before an
// attempt begins.
type AttemptCap struct {
	MaxMs      int64
	MaxCostUSD float64
}

// AttemptCaps partitions the controller's remaining budget across maxAttempts
// future attempts using the tapering weight table, applying the meaningful
// floor to every attempt where the remaining budget can afford it.
func (c *Controller) AttemptCaps(usage llmclient.Usage, maxAttempts int) []AttemptCap {
	weights := attemptWeights(maxAttempts)
	remainingMs := c.RemainingMs()
	remainingCost := c.RemainingCostUSD(usage)

	caps := make([]AttemptCap, len(weights))
	for i, w := range weights {
		ms := int64(w * float64(remainingMs))
		cost := w * remainingCost
		if remainingMs >= minFloorMs && ms < minFloorMs {
			ms = minFloorMs
		}
		if remainingCost >= minFloorCostUSD && cost < minFloorCostUSD {
			cost = minFloorCostUSD
		}
		caps[i] = AttemptCap{MaxMs: ms, MaxCostUSD: cost}
	}
	return caps
}
