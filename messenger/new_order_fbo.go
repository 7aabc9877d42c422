package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// NewOrderFbo synthesizes one marketplace order carrying the whole batch
// output of an FBO batch.
type NewOrderFbo struct {
	base
}

func NewNewOrderFbo(deps Deps) *NewOrderFbo {
	return &NewOrderFbo{base: newBase(deps, NameNewOrderFbo)}
}

func (h *NewOrderFbo) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	dd := h.deps.Dedup.Namespace(PackageNamespace).Deduplication(msg.ID, h.name)
	done, ok := h.executed(ctx, lgr, dd)
	if !ok {
		return false
	}
	if done {
		return true
	}

	e, ok := h.current(ctx, lgr, msg.ID)
	if !ok || !part.IsCompletedFbo(e) {
		return false
	}
	fulfillment, _ := e.Complete.Fulfillment()

	p, err := h.deps.Repo.Part(ctx, msg.ID)
	if err != nil {
		logger.Critical(lgr, "part %s not found: %v", msg.ID, err)
		return false
	}

	cmd := ports.NewOrderCommand{
		Profile:     e.Profile,
		User:        h.user(ctx, lgr, e),
		Number:      p.Number,
		Fulfillment: fulfillment,
	}
	for _, prod := range e.SortedProducts() {
		if prod.Empty() || h.identity(ctx, lgr, prod.SKU) == nil {
			continue
		}
		cmd.Lines = append(cmd.Lines, ports.NewOrderLine{
			SKU:   prod.SKU,
			Total: prod.Total,
			Price: prod.Total,
		})
	}
	if len(cmd.Lines) == 0 {
		logger.Critical(lgr, "part %s has no identifiable products for a new order", msg.ID)
		return false
	}

	// The marker goes first: a duplicated marketplace order is worse than a
	// missing one, which the operator recreates by hand.
	if err := dd.Save(ctx); err != nil {
		logger.Critical(lgr, "deduplication save failed for %s: %v", dd.Key(), err)
		return false
	}

	res := h.deps.NewOrder.Handle(ctx, cmd)
	order, ok := res.Value()
	if !ok {
		logger.Critical(lgr, "new order for part %s failed [%s]: %v", msg.ID, res.ErrorID(), res.Err())
		return false
	}
	lgr.Info("order %s created for part %s", order.ID, msg.ID)
	return true
}

func (h *NewOrderFbo) user(ctx context.Context, lgr logger.Logger, e *part.Event) string {
	if h.deps.Profiles == nil {
		return ""
	}
	for _, profile := range []string{e.Fixed, e.Profile} {
		if profile == "" {
			continue
		}
		user, ok, err := h.deps.Profiles.UserOf(ctx, profile)
		if err != nil {
			lgr.Warn("user of profile %s lookup failed: %v", profile, err)
			continue
		}
		if ok {
			return user
		}
	}
	return ""
}
