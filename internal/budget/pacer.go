package budget

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer token-bucket limits how quickly LLM calls may *start*, so a burst of
// quick-check repair iterations cannot front-load spend before
// GuardBeforeLLMCall has fresh usage to check against. One token per call;
// the bucket refills at a steady rate independent of the overall budget.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer allowing callsPerSecond sustained starts with a
// burst of burst calls.
func NewPacer(callsPerSecond float64, burst int) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst)}
}

// Wait blocks until a call is allowed to start, or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
