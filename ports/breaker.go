package ports

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

// BreakerConfig configures a circuit breaker guarding a downstream collaborator.
type BreakerConfig struct {
	Name             string        `json:"name" yaml:"name"`
	MaxRequests      uint32        `json:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `json:"interval" yaml:"interval"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	FailureThreshold uint32        `json:"failure_threshold" yaml:"failure_threshold"`
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// StateListener is notified on breaker state changes.
type StateListener func(name, from, to string)

// Breaker wraps gobreaker for Result returning collaborators.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger logger.Logger
}

func NewBreaker(cfg BreakerConfig, lgr logger.Logger, listeners ...StateListener) *Breaker {
	lgr = logger.Normalize(lgr)
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig(cfg.Name).FailureThreshold
	}
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lgr.Warn("circuit breaker %s changed state from %s to %s", name, from.String(), to.String())
			for _, l := range listeners {
				if l != nil {
					l(name, from.String(), to.String())
				}
			}
		},
	}
	return &Breaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		name:   cfg.Name,
		logger: lgr,
	}
}

func (b *Breaker) Name() string { return b.name }

// State returns the breaker state name: closed, half-open or open.
func (b *Breaker) State() string { return b.cb.State().String() }

// Guard runs fn through the breaker. A failed result counts as a breaker
// failure; an open breaker short-circuits with ErrCircuitOpen.
func Guard[T any](b *Breaker, fn func() manufacture.Result[T]) manufacture.Result[T] {
	if b == nil {
		return fn()
	}

	out, err := b.cb.Execute(func() (interface{}, error) {
		res := fn()
		if res.IsOK() {
			return res, nil
		}
		if res.Err() != nil {
			return res, res.Err()
		}
		return res, manufacture.ErrDownstream
	})

	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		b.logger.Warn("circuit breaker %s rejected call: %v", b.name, err)
		return manufacture.Fail[T](manufacture.NewError(manufacture.ErrCircuitOpen, "", err, map[string]any{
			"breaker": b.name,
		}))
	}

	if res, ok := out.(manufacture.Result[T]); ok {
		return res
	}
	return manufacture.Fail[T](err)
}

// Breakers groups one breaker per downstream collaborator.
type Breakers struct {
	Stock        *Breaker
	PackageStock *Breaker
	Timesheet    *Breaker
	OrderStatus  *Breaker
	NewOrder     *Breaker
}

// NewBreakers builds default breakers for every guarded collaborator.
func NewBreakers(lgr logger.Logger, listeners ...StateListener) Breakers {
	return NewBreakersFrom(DefaultBreakerConfig(""), lgr, listeners...)
}

// NewBreakersFrom builds one breaker per guarded collaborator from a shared
// template. The template name is replaced by the collaborator name.
func NewBreakersFrom(tmpl BreakerConfig, lgr logger.Logger, listeners ...StateListener) Breakers {
	named := func(name string) *Breaker {
		cfg := tmpl
		cfg.Name = name
		return NewBreaker(cfg, lgr, listeners...)
	}
	return Breakers{
		Stock:        named("stock_income"),
		PackageStock: named("stock_package"),
		Timesheet:    named("timesheet"),
		OrderStatus:  named("order_status"),
		NewOrder:     named("order_new"),
	}
}

// GuardStock decorates a StockRequestHandler with b.
func GuardStock(next StockRequestHandler, b *Breaker) StockRequestHandler {
	return StockRequestFunc(func(ctx context.Context, cmd StockIncomeCommand) manufacture.Result[*StockRecord] {
		return Guard(b, func() manufacture.Result[*StockRecord] { return next.Handle(ctx, cmd) })
	})
}

// GuardPackageStock decorates a PackageStockRequestHandler with b.
func GuardPackageStock(next PackageStockRequestHandler, b *Breaker) PackageStockRequestHandler {
	return PackageStockRequestFunc(func(ctx context.Context, cmd PackageStockCommand) manufacture.Result[*StockRecord] {
		return Guard(b, func() manufacture.Result[*StockRecord] { return next.Handle(ctx, cmd) })
	})
}

// GuardTimesheet decorates a TimesheetHandler with b.
func GuardTimesheet(next TimesheetHandler, b *Breaker) TimesheetHandler {
	return TimesheetFunc(func(ctx context.Context, entry TimesheetEntry) manufacture.Result[*TimesheetRecord] {
		return Guard(b, func() manufacture.Result[*TimesheetRecord] { return next.Handle(ctx, entry) })
	})
}

// GuardOrderStatus decorates an OrderStatusTransition with b.
func GuardOrderStatus(next OrderStatusTransition, b *Breaker) OrderStatusTransition {
	return OrderStatusFunc(func(ctx context.Context, cmd OrderStatusCommand) manufacture.Result[*Order] {
		return Guard(b, func() manufacture.Result[*Order] { return next.Apply(ctx, cmd) })
	})
}

// GuardNewOrder decorates a NewOrderHandler with b.
func GuardNewOrder(next NewOrderHandler, b *Breaker) NewOrderHandler {
	return NewOrderFunc(func(ctx context.Context, cmd NewOrderCommand) manufacture.Result[*Order] {
		return Guard(b, func() manufacture.Result[*Order] { return next.Handle(ctx, cmd) })
	})
}
