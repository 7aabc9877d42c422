package runner

import (
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-manufacture"
)

type fixedDecisionStrategy struct {
	decision RetryDecision
}

func (f fixedDecisionStrategy) SleepDuration(int, error) time.Duration { return 0 }

func (f fixedDecisionStrategy) Decide(int, error) RetryDecision { return f.decision }

func TestDecideRetryUsesDeciderWhenAvailable(t *testing.T) {
	strategy := fixedDecisionStrategy{
		decision: RetryDecision{
			ShouldRetry: false,
			Delay:       25 * time.Millisecond,
			Metadata: map[string]any{
				"source": "test",
			},
		},
	}

	decision := DecideRetry(strategy, 1, fmt.Errorf("boom"))
	if decision.ShouldRetry {
		t.Fatal("expected strategy decision to disable retry")
	}
	if decision.Delay != 25*time.Millisecond {
		t.Fatalf("unexpected delay: %s", decision.Delay)
	}
	if decision.Metadata["source"] != "test" {
		t.Fatal("expected metadata propagation")
	}
}

func TestDecideRetryFallsBackToSleepDuration(t *testing.T) {
	strategy := ExponentialBackoffStrategy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Max:    100 * time.Millisecond,
	}
	decision := DecideRetry(strategy, 2, nil)
	if !decision.ShouldRetry {
		t.Fatal("expected fallback strategy to retry")
	}
	if decision.Delay != 40*time.Millisecond {
		t.Fatalf("unexpected fallback delay: %s", decision.Delay)
	}
}

func TestExponentialBackoffCapsAtMax(t *testing.T) {
	strategy := ExponentialBackoffStrategy{Base: time.Second, Factor: 10, Max: 3 * time.Second}
	if got := strategy.SleepDuration(5, nil); got != 3*time.Second {
		t.Fatalf("expected cap at 3s, got %s", got)
	}
}

func TestSkipCodesStrategy(t *testing.T) {
	strategy := DefaultRetryStrategy()

	panicErr := manufacture.PanicError("h", "boom", nil)
	if DecideRetry(strategy, 0, panicErr).ShouldRetry {
		t.Fatal("panics must not be retried")
	}

	validation := manufacture.NewError(manufacture.ErrValidation, "bad", nil, nil)
	if DecideRetry(strategy, 0, validation).ShouldRetry {
		t.Fatal("validation failures must not be retried")
	}

	if !DecideRetry(strategy, 0, fmt.Errorf("transient")).ShouldRetry {
		t.Fatal("plain errors should be retried")
	}
}
