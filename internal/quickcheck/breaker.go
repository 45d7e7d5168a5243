package quickcheck

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrStalled is returned when the same failure fingerprint repeats across
// repair iterations, indicating the repair loop is making no progress.
var ErrStalled = errors.New("quick-check repair loop stalled on an identical failure")

// StallDetector wraps a gobreaker.CircuitBreaker to short-circuit a repair
// loop as soon as a quick-check failure fingerprint repeats the one observed
// just before it, rather than burning the remaining repair budget on an LLM
// call that already failed to fix it. After consecutiveStallLimit repeats in
// a row the breaker opens and every later observation reports a stall. The same type
// also backs the harness's cross-attempt stall check: one
// instance scoped to a single attempt's repair loop, a second scoped to the
// whole run to catch different attempts failing for the same reason.
type StallDetector struct {
	breaker  *gobreaker.CircuitBreaker
	lastSeen string
}

const consecutiveStallLimit = 2

// NewStallDetector builds a fresh detector. Callers decide its scope by how
// long they hold onto it: per-attempt for the intra-loop check, or for the
// life of the run for the cross-attempt check.
func NewStallDetector() *StallDetector {
	st := gobreaker.Settings{
		Name:        "quickcheck-repair-stall",
		MaxRequests: 1,
		Interval:    0, // never reset counts on a timer; scoped to one loop
		Timeout:     time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveStallLimit
		},
	}
	return &StallDetector{breaker: gobreaker.NewCircuitBreaker(st)}
}

// Observe records one iteration's failure fingerprint. It returns
// ErrStalled when fingerprint equals the previous observation, and for every
// observation once the breaker has tripped; otherwise it returns nil (a
// fingerprint that differs from the previous one resets the
// consecutive-failure count).
func (d *StallDetector) Observe(fingerprint string) error {
	fresh := fingerprint != d.lastSeen
	d.lastSeen = fingerprint

	_, err := d.breaker.Execute(func() (any, error) {
		if fresh {
			return nil, nil
		}
		return nil, ErrStalled
	})
	if d.breaker.State() == gobreaker.StateOpen {
		return ErrStalled
	}
	return err
}
