package messenger

import (
	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dispatcher"
	"github.com/goliatone/go-manufacture/runner"
)

type Option func(*registry)

type registry struct {
	perOrderDedup bool
	runnerOpts    []runner.Option
}

// WithPerOrderPackageDedup gates every order packaging on its own
// deduplication key in addition to the message key.
func WithPerOrderPackageDedup(enabled bool) Option {
	return func(r *registry) {
		r.perOrderDedup = enabled
	}
}

// WithRunnerOptions applies runner options to every subscription.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(r *registry) {
		r.runnerOpts = append(r.runnerOpts, opts...)
	}
}

// Register subscribes the reconciliation handlers to bus in priority order
// and returns their subscriptions.
func Register(bus *dispatcher.Bus, deps Deps, opts ...Option) []dispatcher.Subscription {
	r := &registry{}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	parts := []struct {
		handler  manufacture.Handler[manufacture.PartMessage]
		name     string
		priority int
	}{
		{NewProductsSum(deps), NameProductsSum, PriorityProductsSum},
		{NewCompleted(deps), NameCompleted, PriorityCompleted},
		{NewNewOrderFbo(deps), NameNewOrderFbo, PriorityNewOrderFbo},
		{NewProductStocks(deps), NameProductStocks, PriorityProductStocks},
		{NewPackageOrders(deps, r.perOrderDedup), NamePackageOrders, PriorityPackageOrders},
		{NewProductOrder(deps), NameProductOrder, PriorityProductOrder},
		{NewPackageProductStock(deps), NamePackageProductStock, PriorityPackageProductStock},
		{NewAddUserTable(deps), NameAddUserTable, PriorityUserTable},
		{NewSubUserTable(deps), NameSubUserTable, PriorityUserTable},
		{NewClosedByZero(deps), NameClosedByZero, PriorityClosedByZero},
	}

	subs := make([]dispatcher.Subscription, 0, len(parts)+1)
	for _, p := range parts {
		subs = append(subs, dispatcher.Subscribe[manufacture.PartMessage](bus, p.handler,
			dispatcher.WithName(p.name),
			dispatcher.WithPriority(p.priority),
			dispatcher.WithRunner(r.runnerOpts...),
		))
	}
	subs = append(subs, dispatcher.Subscribe[manufacture.ProductMessage](bus, NewProductLocks(deps),
		dispatcher.WithName(NameProductLocks),
		dispatcher.WithRunner(r.runnerOpts...),
	))
	return subs
}
