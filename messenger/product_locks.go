package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

// ProductLocks applies ProductMessage lock and release requests.
type ProductLocks struct {
	deps Deps
}

func NewProductLocks(deps Deps) *ProductLocks {
	deps.Logger = logger.Normalize(deps.Logger)
	return &ProductLocks{deps: deps}
}

func (h *ProductLocks) Name() string { return NameProductLocks }

func (h *ProductLocks) Handle(ctx context.Context, msg manufacture.ProductMessage) bool {
	lgr := logger.With(h.deps.Logger.WithContext(ctx), map[string]any{
		"handler":    NameProductLocks,
		"part_id":    msg.Manufacture,
		"invariable": msg.Invariable,
	})

	var err error
	switch {
	case msg.Invariable != "" && msg.Manufacture != "":
		err = h.deps.Locks.Lock(ctx, msg.Invariable, msg.Manufacture, msg.Kind)
	case msg.Invariable != "":
		err = h.deps.Locks.ReleaseByInvariable(ctx, msg.Invariable, msg.Kind)
	case msg.Manufacture != "":
		err = h.deps.Locks.ReleaseByPart(ctx, msg.Manufacture)
	default:
		return false
	}
	if err != nil {
		logger.Critical(lgr, "product lock update failed: %v", err)
		return false
	}
	return true
}
