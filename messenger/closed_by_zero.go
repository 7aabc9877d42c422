package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
)

// ClosedByZero closes a packaging or defective batch with nothing left to
// produce and releases its product locks.
type ClosedByZero struct {
	base
}

func NewClosedByZero(deps Deps) *ClosedByZero {
	return &ClosedByZero{base: newBase(deps, NameClosedByZero)}
}

func (h *ClosedByZero) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	p, err := h.deps.Repo.Part(ctx, msg.ID)
	if err != nil {
		logger.Critical(lgr, "part %s not found: %v", msg.ID, err)
		return false
	}
	e, ok := h.current(ctx, lgr, msg.ID)
	if !ok || !part.CanCloseByZero(e, p.Quantity) {
		return false
	}

	next := e.Clone()
	if err := next.Transition(part.StatusClosed); err != nil {
		logger.Critical(lgr, "closing part %s failed: %v", msg.ID, err)
		return false
	}
	if !h.commit(ctx, lgr, e, next) {
		return false
	}
	h.publish(ctx, lgr, manufacture.ProductMessage{Manufacture: msg.ID})
	lgr.Info("part %s closed with zero quantity", msg.ID)
	return true
}
