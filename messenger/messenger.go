// Package messenger holds the reconciliation handlers reacting to batch
// messages. Every handler re-reads the current state and evaluates its own
// guard; side effects towards other subsystems sit behind a dedup gate that
// is saved only after the side effect succeeded.
package messenger

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

// PackageNamespace groups the dedup keys of the marketplace packaging flow.
const PackageNamespace = "wildberries-package"

// RemoveChannel is the notifier channel announcing released products.
const RemoveChannel = "remove"

const (
	NameProductsSum         = "manufacture_part_products_sum"
	NameCompleted           = "manufacture_part_completed"
	NameNewOrderFbo         = "new_order_fbo_by_part_completed"
	NameProductStocks       = "product_stocks_by_part_completed"
	NamePackageOrders       = "package_orders_by_part_completed"
	NameProductOrder        = "manufacture_part_product_order_by_part_completed"
	NamePackageProductStock = "package_product_stock_by_part_completed"
	NameClosedByZero        = "manufacture_part_closed_by_zero"
	NameAddUserTable        = "add_user_table_by_manufacture_part_working"
	NameSubUserTable        = "sub_user_table_by_manufacture_part_defect"
	NameProductLocks        = "manufacture_product_dispatcher"
)

const (
	PriorityProductsSum         = 99
	PriorityCompleted           = 90
	PriorityNewOrderFbo         = 70
	PriorityProductStocks       = 70
	PriorityPackageOrders       = 30
	PriorityProductOrder        = 15
	PriorityPackageProductStock = 10
	PriorityClosedByZero        = 0
	PriorityUserTable           = 0
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	Repo         store.Repository
	Dedup        *dedup.Deduplicator
	Working      ports.WorkingLookup
	Orders       ports.OrderLookup
	Access       ports.OrderAccessUpdate
	OrderStatus  ports.OrderStatusTransition
	NewOrder     ports.NewOrderHandler
	Identifier   ports.ProductIdentifier
	Stock        ports.StockRequestHandler
	PackageStock ports.PackageStockRequestHandler
	Timesheet    ports.TimesheetHandler
	Profiles     ports.ProfileLookup
	Notifier     ports.Notifier
	Locks        ports.ProductLocks
	Publisher    transport.Publisher
	Transitions  part.TransitionObserver
	Logger       logger.Logger
}

type base struct {
	deps Deps
	name string
}

func newBase(deps Deps, name string) base {
	deps.Logger = logger.Normalize(deps.Logger)
	if deps.Dedup == nil {
		deps.Dedup = dedup.New(nil)
	}
	return base{deps: deps, name: name}
}

func (b base) Name() string { return b.name }

func (b base) log(ctx context.Context, msg manufacture.PartMessage) logger.Logger {
	return logger.With(b.deps.Logger.WithContext(ctx), map[string]any{
		"handler":  b.name,
		"part_id":  msg.ID,
		"event_id": msg.Event,
	})
}

// current loads the batch's current event, logging misses as critical.
func (b base) current(ctx context.Context, lgr logger.Logger, partID string) (*part.Event, bool) {
	e, err := b.deps.Repo.CurrentEvent(ctx, partID)
	if err != nil || e == nil {
		logger.Critical(lgr, "current event of part %s not found: %v", partID, err)
		return nil, false
	}
	return e, true
}

// version loads the event version named by the message.
func (b base) version(ctx context.Context, lgr logger.Logger, eventID string) (*part.Event, bool) {
	e, err := b.deps.Repo.Event(ctx, eventID)
	if err != nil || e == nil {
		logger.Critical(lgr, "event %s not found: %v", eventID, err)
		return nil, false
	}
	return e, true
}

// executed checks a dedup handle. ok is false when the store failed and the
// handler must stop without acting.
func (b base) executed(ctx context.Context, lgr logger.Logger, h *dedup.Handle) (done bool, ok bool) {
	done, err := h.IsExecuted(ctx)
	if err != nil {
		logger.Critical(lgr, "deduplication lookup failed for %s: %v", h.Key(), err)
		return false, false
	}
	return done, true
}

func (b base) markSaved(ctx context.Context, lgr logger.Logger, h *dedup.Handle) {
	if err := h.Save(ctx); err != nil {
		logger.Critical(lgr, "deduplication save failed for %s: %v", h.Key(), err)
	}
}

// commit stores next as the new current version and announces it.
func (b base) commit(ctx context.Context, lgr logger.Logger, prev, next *part.Event) bool {
	if err := b.deps.Repo.Save(ctx, next); err != nil {
		logger.Critical(lgr, "saving event %s of part %s failed: %v", next.ID, next.Main, err)
		return false
	}
	if prev != nil && prev.Status != next.Status && b.deps.Transitions != nil {
		b.deps.Transitions.ObserveTransition(prev.Status, next.Status)
	}
	b.publish(ctx, lgr, manufacture.NewPartMessage(next.Main, next.ID))
	return true
}

func (b base) publish(ctx context.Context, lgr logger.Logger, msg manufacture.Message) {
	if b.deps.Publisher == nil {
		lgr.Debug("no publisher configured, dropping %s", msg.Type())
		return
	}
	if err := b.deps.Publisher.Publish(ctx, msg); err != nil {
		logger.Critical(lgr, "publishing %s failed: %v", msg.Type(), err)
	}
}

// identity resolves the constant identifiers of sku, nil when unknown.
func (b base) identity(ctx context.Context, lgr logger.Logger, sku part.SKU) *ports.ProductIdentity {
	if b.deps.Identifier == nil {
		return &ports.ProductIdentity{
			Product:           sku.Product,
			OfferConst:        sku.Offer,
			VariationConst:    sku.Variation,
			ModificationConst: sku.Modification,
		}
	}
	id, err := b.deps.Identifier.Current(ctx, sku)
	if err != nil {
		logger.Critical(lgr, "product identity lookup for %s failed: %v", sku, err)
		return nil
	}
	if id == nil {
		lgr.Warn("product identity for %s not found", sku)
	}
	return id
}
