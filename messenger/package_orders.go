package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// PackageOrders moves every associated order whose lines are all ready to
// the Package status, assigned to the batch profile.
type PackageOrders struct {
	base
	perOrderDedup bool
}

func NewPackageOrders(deps Deps, perOrderDedup bool) *PackageOrders {
	return &PackageOrders{base: newBase(deps, NamePackageOrders), perOrderDedup: perOrderDedup}
}

func (h *PackageOrders) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
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

	handled := true
	for _, orderID := range associatedOrders(e) {
		order, err := h.deps.Orders.CurrentOrder(ctx, orderID)
		if err != nil || order == nil {
			logger.Critical(lgr, "order %s not found: %v", orderID, err)
			handled = false
			continue
		}
		if order.Status != ports.OrderStatusNew || !order.AllReady() {
			continue
		}

		od := dedup.Deduplication(orderID, h.name)
		if h.perOrderDedup {
			done, ok := h.executed(ctx, lgr, od)
			if !ok {
				handled = false
				continue
			}
			if done {
				continue
			}
		}

		res := h.deps.OrderStatus.Apply(ctx, ports.OrderStatusCommand{
			OrderID: orderID,
			Status:  ports.OrderStatusPackage,
			Profile: e.Profile,
		})
		if !res.IsOK() {
			logger.Critical(lgr, "packaging order %s failed [%s]: %v", orderID, res.ErrorID(), res.Err())
			handled = false
			continue
		}
		if h.perOrderDedup {
			h.markSaved(ctx, lgr, od)
		}
		lgr.Info("order %s moved to package", orderID)
	}

	if handled {
		h.markSaved(ctx, lgr, dd)
	}
	return handled
}

// associatedOrders lists the distinct orders linked to any line of e.
func associatedOrders(e *part.Event) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range e.SortedProducts() {
		for _, id := range p.Orders {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
