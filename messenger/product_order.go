package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// ProductOrder associates the output of a completed FBS batch with new
// marketplace orders waiting for the exact SKU. Every association marks one
// unit of the order line ready. A batch contributes at most one unit to any
// order line; further units of that order come from other batches.
//
// The association runs once per batch. Orders placed after the pass are not
// matched against it, even when lines are left unsaturated.
type ProductOrder struct {
	base
}

func NewProductOrder(deps Deps) *ProductOrder {
	return &ProductOrder{base: newBase(deps, NameProductOrder)}
}

func (h *ProductOrder) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	dd := h.deps.Dedup.Deduplication(msg.ID, h.name)
	done, ok := h.executed(ctx, lgr, dd)
	if !ok {
		return false
	}
	if done {
		return true
	}

	e, ok := h.current(ctx, lgr, msg.ID)
	if !ok || !part.IsCompletedFbs(e) {
		return false
	}
	fulfillment, _ := e.Complete.Fulfillment()

	next := e.Clone()
	changed := false
	failed := false
	for i := range next.Products {
		prod := &next.Products[i]
		visited := append([]string{}, prod.Orders...)
		for !prod.Saturated() {
			order, err := h.deps.Orders.RelevantNewOrder(ctx, ports.OrderQuery{
				Delivery: fulfillment.Delivery,
				SKU:      prod.SKU,
				Exclude:  visited,
			})
			if err != nil {
				logger.Critical(lgr, "relevant order lookup for %s failed: %v", prod.SKU, err)
				failed = true
				break
			}
			if order == nil {
				break
			}
			visited = append(visited, order.ID)

			associated, ok := h.associate(ctx, lgr, msg.ID, prod, order)
			if !ok {
				failed = true
				break
			}
			if associated {
				changed = true
			}
		}
	}

	if changed && !h.commit(ctx, lgr, e, next) {
		return false
	}
	if failed {
		return false
	}
	if !allSaturated(next) {
		lgr.Info("part %s keeps unassociated units", msg.ID)
	}
	h.markSaved(ctx, lgr, dd)
	return true
}

// associate marks one unit of order ready for prod. ok is false when a
// store or collaborator failed and the pass must be retried.
func (h *ProductOrder) associate(ctx context.Context, lgr logger.Logger, partID string, prod *part.Product, order *ports.Order) (associated, ok bool) {
	dd := h.deps.Dedup.Deduplication(partID, order.ID, prod.ID, h.name)
	done, ok := h.executed(ctx, lgr, dd)
	if !ok {
		return false, false
	}
	if done {
		return prod.AddOrder(order.ID), true
	}

	for _, line := range order.Lines {
		if !line.SKU.Matches(prod.SKU) || line.Ready() {
			continue
		}
		if err := h.deps.Access.Increment(ctx, line.ID); err != nil {
			logger.Critical(lgr, "marking line %s of order %s ready failed: %v", line.ID, order.ID, err)
			return false, false
		}
		h.markSaved(ctx, lgr, dd)
		prod.AddOrder(order.ID)
		return true, true
	}
	return false, true
}

func allSaturated(e *part.Event) bool {
	for _, p := range e.Products {
		if !p.Empty() && !p.Saturated() {
			return false
		}
	}
	return true
}
