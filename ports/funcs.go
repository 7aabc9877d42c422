package ports

import (
	"context"

	"github.com/goliatone/go-manufacture"
)

// StockRequestFunc is an adapter that lets you use a function as a StockRequestHandler
type StockRequestFunc func(ctx context.Context, cmd StockIncomeCommand) manufacture.Result[*StockRecord]

func (f StockRequestFunc) Handle(ctx context.Context, cmd StockIncomeCommand) manufacture.Result[*StockRecord] {
	return f(ctx, cmd)
}

// PackageStockRequestFunc is an adapter that lets you use a function as a PackageStockRequestHandler
type PackageStockRequestFunc func(ctx context.Context, cmd PackageStockCommand) manufacture.Result[*StockRecord]

func (f PackageStockRequestFunc) Handle(ctx context.Context, cmd PackageStockCommand) manufacture.Result[*StockRecord] {
	return f(ctx, cmd)
}

// TimesheetFunc is an adapter that lets you use a function as a TimesheetHandler
type TimesheetFunc func(ctx context.Context, entry TimesheetEntry) manufacture.Result[*TimesheetRecord]

func (f TimesheetFunc) Handle(ctx context.Context, entry TimesheetEntry) manufacture.Result[*TimesheetRecord] {
	return f(ctx, entry)
}

// NewOrderFunc is an adapter that lets you use a function as a NewOrderHandler
type NewOrderFunc func(ctx context.Context, cmd NewOrderCommand) manufacture.Result[*Order]

func (f NewOrderFunc) Handle(ctx context.Context, cmd NewOrderCommand) manufacture.Result[*Order] {
	return f(ctx, cmd)
}

// OrderStatusFunc is an adapter that lets you use a function as an OrderStatusTransition
type OrderStatusFunc func(ctx context.Context, cmd OrderStatusCommand) manufacture.Result[*Order]

func (f OrderStatusFunc) Apply(ctx context.Context, cmd OrderStatusCommand) manufacture.Result[*Order] {
	return f(ctx, cmd)
}
