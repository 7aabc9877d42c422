package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

// AddUserTable credits the employee of a finished working stage with the
// quantity of the version named by the message, which also names the stage.
type AddUserTable struct {
	base
}

func NewAddUserTable(deps Deps) *AddUserTable {
	return &AddUserTable{base: newBase(deps, NameAddUserTable)}
}

func (h *AddUserTable) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	dd := h.deps.Dedup.Deduplication(msg.Event, h.name)
	done, ok := h.executed(ctx, lgr, dd)
	if !ok {
		return false
	}
	if done {
		return true
	}

	e, ok := h.version(ctx, lgr, msg.Event)
	if !ok || !part.IsWorkingPackage(e) {
		return false
	}
	return h.book(ctx, lgr, dd, e, e.Sum())
}

// SubUserTable debits the employee blamed for a defect with the defective
// quantity carried by the message.
type SubUserTable struct {
	base
}

func NewSubUserTable(deps Deps) *SubUserTable {
	return &SubUserTable{base: newBase(deps, NameSubUserTable)}
}

func (h *SubUserTable) Handle(ctx context.Context, msg manufacture.PartMessage) bool {
	lgr := h.log(ctx, msg)
	total := msg.DefectTotal()
	if total <= 0 {
		return false
	}
	dd := h.deps.Dedup.Deduplication(msg.Event, h.name)
	done, ok := h.executed(ctx, lgr, dd)
	if !ok {
		return false
	}
	if done {
		return true
	}

	e, ok := h.version(ctx, lgr, msg.Event)
	if !ok || !part.IsWorkingDefect(e) {
		return false
	}
	return h.book(ctx, lgr, dd, e, -total)
}

// book records a timesheet entry for the working stage of e, then marks dd.
func (b base) book(ctx context.Context, lgr logger.Logger, dd *dedup.Handle, e *part.Event, quantity int) bool {
	res := b.deps.Timesheet.Handle(ctx, ports.TimesheetEntry{
		Profile:  e.Working.Profile,
		Stage:    e.Working.Stage,
		PartID:   e.Main,
		EventID:  e.ID,
		Quantity: quantity,
	})
	if !res.IsOK() {
		logger.Critical(lgr, "timesheet entry for %s failed [%s]: %v", e.Working.Profile, res.ErrorID(), res.Err())
		return false
	}
	b.markSaved(ctx, lgr, dd)
	return true
}
