package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
)

// Completed moves a packaged or defective batch to Completed once no working
// stage remains, then releases the product locks of every line.
type Completed struct {
	base
}

func NewCompleted(deps Deps) *Completed {
	return &Completed{base: newBase(deps, NameCompleted)}
}

func (h *Completed) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	e, ok := h.current(ctx, lgr, msg.ID)
	if !ok || !part.CanComplete(e) {
		return false
	}
	if part.IsCompleted(e) {
		return true
	}
	// A batch without output is left to ClosedByZero.
	if e.Sum() == 0 {
		return false
	}

	if h.deps.Working != nil {
		stage, pending, err := h.deps.Working.NextStage(ctx, msg.ID)
		if err != nil {
			logger.Critical(lgr, "next working stage of part %s failed: %v", msg.ID, err)
			return false
		}
		if pending {
			lgr.Debug("part %s waits for stage %s", msg.ID, stage)
			return false
		}
	}

	next := e.Clone()
	if err := next.Transition(part.StatusCompleted); err != nil {
		logger.Critical(lgr, "completing part %s failed: %v", msg.ID, err)
		return false
	}
	if !h.commit(ctx, lgr, e, next) {
		return false
	}

	h.release(ctx, lgr, next)
	return true
}

func (h *Completed) release(ctx context.Context, lgr logger.Logger, e *part.Event) {
	if h.deps.Notifier != nil {
		for _, p := range e.SortedProducts() {
			data := map[string]any{"identifier": p.SKU.Identifier()}
			if err := h.deps.Notifier.Publish(ctx, RemoveChannel, data); err != nil {
				logger.Critical(lgr, "removal notification for %s failed: %v", p.SKU, err)
			}
		}
	}
	h.publish(ctx, lgr, manufacture.ProductMessage{Manufacture: e.Main})
}
