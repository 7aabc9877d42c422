package runner

import (
	"math"
	"time"

	"github.com/goliatone/go-manufacture"
)

// RetryStrategy encapsulates the delay between retries.
type RetryStrategy interface {
	// SleepDuration returns how long to wait before the next retry attempt.
	// The attempt index starts at 0, incrementing after each failure.
	SleepDuration(attempt int, err error) time.Duration
}

// RetryDecision is the outcome of evaluating a failed attempt.
type RetryDecision struct {
	ShouldRetry bool
	Delay       time.Duration
	Metadata    map[string]any
}

// RetryDecider is implemented by strategies that can veto a retry.
type RetryDecider interface {
	Decide(attempt int, err error) RetryDecision
}

// DecideRetry asks strategy whether to retry. Strategies that only
// implement RetryStrategy always retry after SleepDuration.
func DecideRetry(strategy RetryStrategy, attempt int, err error) RetryDecision {
	if strategy == nil {
		return RetryDecision{ShouldRetry: true}
	}
	if d, ok := strategy.(RetryDecider); ok {
		return d.Decide(attempt, err)
	}
	return RetryDecision{ShouldRetry: true, Delay: strategy.SleepDuration(attempt, err)}
}

// NoDelayStrategy performs all retries immediately.
type NoDelayStrategy struct{}

func (NoDelayStrategy) SleepDuration(_ int, _ error) time.Duration {
	return 0
}

// ExponentialBackoffStrategy implements a backoff strategy.
//
//	WithRetryStrategy(ExponentialBackoffStrategy{
//	    Base:   100 * time.Millisecond,
//	    Factor: 2,
//	    Max:    5 * time.Second,
//	})
type ExponentialBackoffStrategy struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// SleepDuration implements an exponential backoff with a cap at Max.
func (e ExponentialBackoffStrategy) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(e.Base) * math.Pow(e.Factor, float64(attempt))
	if time.Duration(delay) > e.Max && e.Max > 0 {
		return e.Max
	}
	return time.Duration(delay)
}

// SkipCodesStrategy never retries errors carrying one of Codes and
// delegates the delay to Base otherwise. Panics and validation failures
// are deterministic, retrying them only repeats the failure.
type SkipCodesStrategy struct {
	Base  RetryStrategy
	Codes []string
}

// DefaultRetryStrategy skips panics and validation failures with no delay.
func DefaultRetryStrategy() SkipCodesStrategy {
	return SkipCodesStrategy{
		Base:  NoDelayStrategy{},
		Codes: []string{manufacture.ErrCodeHandlerPanic, manufacture.ErrCodeValidation},
	}
}

func (s SkipCodesStrategy) SleepDuration(attempt int, err error) time.Duration {
	if s.Base == nil {
		return 0
	}
	return s.Base.SleepDuration(attempt, err)
}

func (s SkipCodesStrategy) Decide(attempt int, err error) RetryDecision {
	code := manufacture.ErrorCode(err)
	for _, c := range s.Codes {
		if code != "" && code == c {
			return RetryDecision{ShouldRetry: false, Metadata: map[string]any{"code": code}}
		}
	}
	return RetryDecision{ShouldRetry: true, Delay: s.SleepDuration(attempt, err)}
}
