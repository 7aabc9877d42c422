package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// ProductStocks issues one warehouse income per produced line of a
// completed batch. Each line is deduplicated on its own, so a failed line
// is retried on redelivery while succeeded lines are skipped.
type ProductStocks struct {
	base
}

func NewProductStocks(deps Deps) *ProductStocks {
	return &ProductStocks{base: newBase(deps, NameProductStocks)}
}

func (h *ProductStocks) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	e, ok := h.current(ctx, lgr, msg.ID)
	if !ok || !part.IsCompleted(e) {
		return false
	}

	dedup := h.deps.Dedup.Namespace(PackageNamespace)
	handled := true
	for _, prod := range e.SortedProducts() {
		if prod.Empty() {
			continue
		}
		dd := dedup.Deduplication(msg.ID, prod.ID, h.name)
		done, ok := h.executed(ctx, lgr, dd)
		if !ok {
			handled = false
			continue
		}
		if done {
			continue
		}

		identity := h.identity(ctx, lgr, prod.SKU)
		if identity == nil {
			continue
		}
		res := h.deps.Stock.Handle(ctx, ports.StockIncomeCommand{
			PartID:  msg.ID,
			Profile: e.Profile,
			Lines:   []ports.StockLine{{Identity: *identity, Total: prod.Total}},
		})
		if !res.IsOK() {
			logger.Critical(lgr, "stock income of product %s failed [%s]: %v", prod.ID, res.ErrorID(), res.Err())
			handled = false
			continue
		}
		h.markSaved(ctx, lgr, dd)
	}
	return handled
}
