package budget

import (
	"context"
	"testing"
	"time"
)

func TestPacer_BurstAllowsImmediateStarts(t *testing.T) {
	p := NewPacer(1, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("expected burst call %d to start immediately, got %v", i, err)
		}
	}
}

func TestPacer_WaitHonorsContextCancellation(t *testing.T) {
	p := NewPacer(0.001, 1)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first call should consume the burst token, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); err == nil {
		t.Fatal("expected a canceled context to abort the wait")
	}
}
