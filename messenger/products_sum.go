package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

// ProductsSum recomputes the denormalized batch quantity from the current
// event lines. It runs first so later guards see a fresh quantity.
type ProductsSum struct {
	base
}

func NewProductsSum(deps Deps) *ProductsSum {
	return &ProductsSum{base: newBase(deps, NameProductsSum)}
}

func (h *ProductsSum) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	products, err := h.deps.Repo.Products(ctx, msg.ID)
	if err != nil {
		logger.Critical(lgr, "products of part %s not found: %v", msg.ID, err)
		return false
	}
	total := 0
	for _, p := range products {
		total += p.Total
	}
	if err := h.deps.Repo.SetQuantity(ctx, msg.ID, total); err != nil {
		logger.Critical(lgr, "updating quantity of part %s failed: %v", msg.ID, err)
		return false
	}
	lgr.Debug("part %s quantity set to %d", msg.ID, total)
	return true
}
