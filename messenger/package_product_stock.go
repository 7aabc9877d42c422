package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// PackageProductStock creates one pick and pack reservation per order the
// batch helped complete.
type PackageProductStock struct {
	base
}

func NewPackageProductStock(deps Deps) *PackageProductStock {
	return &PackageProductStock{base: newBase(deps, NamePackageProductStock)}
}

func (h *PackageProductStock) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	dedup := h.deps.Dedup.Namespace(PackageNamespace)
	dd := dedup.Deduplication(msg.Event, h.name)
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

	for _, orderID := range associatedOrders(e) {
		order, err := h.deps.Orders.CurrentOrder(ctx, orderID)
		if err != nil || order == nil {
			logger.Critical(lgr, "order %s not found: %v", orderID, err)
			return false
		}
		if order.Status != ports.OrderStatusPackage && !(order.Status == ports.OrderStatusNew && order.AllReady()) {
			continue
		}

		od := dedup.Deduplication(orderID, h.name)
		done, ok := h.executed(ctx, lgr, od)
		if !ok {
			return false
		}
		if done {
			continue
		}

		cmd := ports.PackageStockCommand{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			Profile:     e.Profile,
		}
		for _, line := range order.Lines {
			identity := h.identity(ctx, lgr, line.SKU)
			if identity == nil {
				continue
			}
			cmd.Lines = append(cmd.Lines, ports.StockLine{Identity: *identity, Total: line.Total})
		}
		if len(cmd.Lines) == 0 {
			logger.Critical(lgr, "order %s has no identifiable lines", orderID)
			continue
		}

		// One reservation per order at most; a lost request is redone by hand.
		if err := od.Save(ctx); err != nil {
			logger.Critical(lgr, "deduplication save failed for %s: %v", od.Key(), err)
			return false
		}
		res := h.deps.PackageStock.Handle(ctx, cmd)
		if !res.IsOK() {
			logger.Critical(lgr, "package stock for order %s failed [%s]: %v", orderID, res.ErrorID(), res.Err())
			return false
		}
	}

	h.markSaved(ctx, lgr, dd)
	return true
}
