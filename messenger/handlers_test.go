package messenger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

var (
	skuShirt      = part.SKU{Product: "shirt"}
	skuShirtBlue  = part.SKU{Product: "shirt", Offer: "blue"}
	skuShirtBlueM = part.SKU{Product: "shirt", Offer: "blue", Variation: "m"}
)

func TestProductsSumSetsQuantity(t *testing.T) {
	f := newFixture()
	p, e := f.seed(t, part.StatusPackage, part.CompleteNothing, line{skuShirt, 3}, line{skuShirtBlue, 4})
	require.NoError(t, f.repo.SetQuantity(context.Background(), p.ID, 0))

	assert.True(t, NewProductsSum(f.deps).Handle(context.Background(), msgFor(e)))

	stored, err := f.repo.Part(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Quantity)
}

func TestProductsSumMissingPart(t *testing.T) {
	f := newFixture()
	h := NewProductsSum(f.deps)
	assert.False(t, h.Handle(context.Background(), msgFor(&part.Event{ID: "e", Main: "missing"})))
}

func TestCompletedTransitionsOnceAndReleasesLines(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusPackage, part.CompleteStocks, line{skuShirt, 2}, line{skuShirtBlueM, 1})
	h := NewCompleted(f.deps)

	require.True(t, h.Handle(context.Background(), msgFor(e)))
	completed := f.current(t, e.Main)
	assert.Equal(t, part.StatusCompleted, completed.Status)
	assert.NotEqual(t, e.ID, completed.ID)

	removed := f.notifier.Published(RemoveChannel)
	require.Len(t, removed, 2)
	assert.Equal(t, "shirt", removed[0].Data["identifier"])
	assert.Equal(t, "m", removed[1].Data["identifier"])

	published := f.queue.Published()
	require.Len(t, partMessages(published), 1)
	assert.Equal(t, completed.ID, partMessages(published)[0].Event)
	require.Len(t, productMessages(published), 1)
	assert.Equal(t, e.Main, productMessages(published)[0].Manufacture)

	// Redelivery keeps the single Completed version.
	assert.True(t, h.Handle(context.Background(), msgFor(e)))
	assert.Equal(t, completed.ID, f.current(t, e.Main).ID)
	assert.Len(t, f.notifier.Published(RemoveChannel), 2)
	assert.Len(t, f.queue.Published(), 2)
}

func TestCompletedWaitsForRemainingStages(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusPackage, part.CompleteStocks, line{skuShirt, 2})
	f.working.SetStages(e.Main, "ironing")

	assert.False(t, NewCompleted(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Equal(t, part.StatusPackage, f.current(t, e.Main).Status)
	assert.Empty(t, f.notifier.Published(RemoveChannel))
}

func TestCompletedIgnoresOpenBatch(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusOpen, part.CompleteStocks, line{skuShirt, 2})

	assert.False(t, NewCompleted(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Equal(t, part.StatusOpen, f.current(t, e.Main).Status)
}

func TestClosedByZero(t *testing.T) {
	for _, status := range []part.Status{part.StatusPackage, part.StatusDefect} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture()
			p, e := f.seed(t, status, part.CompleteNothing, line{skuShirt, 1})
			h := NewClosedByZero(f.deps)

			assert.False(t, h.Handle(context.Background(), msgFor(e)))
			assert.Equal(t, status, f.current(t, p.ID).Status)

			require.NoError(t, f.repo.SetQuantity(context.Background(), p.ID, 0))
			assert.True(t, h.Handle(context.Background(), msgFor(e)))
			assert.Equal(t, part.StatusClosed, f.current(t, p.ID).Status)
			require.Len(t, productMessages(f.queue.Published()), 1)
		})
	}
}

func TestClosedByZeroIgnoresOpenBatch(t *testing.T) {
	f := newFixture()
	p, e := f.seed(t, part.StatusOpen, part.CompleteNothing)

	assert.False(t, NewClosedByZero(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Equal(t, part.StatusOpen, f.current(t, p.ID).Status)
}

func TestProductOrderSKUExactness(t *testing.T) {
	t.Run("order without offer", func(t *testing.T) {
		f := newFixture()
		_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirtBlue, 1})
		f.addOrder("o1", skuShirt, 1)

		assert.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
		assert.Equal(t, 0, f.access(t, "o1"))
		assert.Empty(t, f.current(t, e.Main).Products[0].Orders)
	})

	t.Run("product without offer", func(t *testing.T) {
		f := newFixture()
		_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 1})
		f.addOrder("o1", skuShirtBlue, 1)

		assert.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
		assert.Equal(t, 0, f.access(t, "o1"))
	})
}

func TestProductOrderSaturates(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirtBlue, 3})
	for _, id := range []string{"o1", "o2", "o3", "o4"} {
		f.addOrder(id, skuShirtBlue, 1)
	}
	h := NewProductOrder(f.deps)

	require.True(t, h.Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 1, f.access(t, "o1"))
	assert.Equal(t, 1, f.access(t, "o2"))
	assert.Equal(t, 1, f.access(t, "o3"))
	assert.Equal(t, 0, f.access(t, "o4"))

	associated := f.current(t, e.Main)
	assert.Equal(t, []string{"o1", "o2", "o3"}, associated.Products[0].Orders)
	assert.Equal(t, part.StatusCompleted, associated.Status)

	// Redelivery of the same message is a dedup hit.
	assert.True(t, h.Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 1, f.access(t, "o1"))
	assert.Equal(t, 0, f.access(t, "o4"))
	assert.Equal(t, associated.ID, f.current(t, e.Main).ID)
}

func TestProductOrderRunsOncePerBatch(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 3})
	f.addOrder("o1", skuShirt, 1)
	h := NewProductOrder(f.deps)

	require.True(t, h.Handle(context.Background(), msgFor(e)))
	associated := f.current(t, e.Main)
	assert.Equal(t, []string{"o1"}, associated.Products[0].Orders)

	// Orders placed after the pass are left to later batches.
	f.addOrder("late", skuShirt, 1)
	require.True(t, h.Handle(context.Background(), msgFor(associated)))
	assert.Equal(t, 0, f.access(t, "late"))
	assert.Equal(t, associated.ID, f.current(t, e.Main).ID)
}

func TestProductOrderGivesOneUnitPerOrderLine(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 3})
	f.addOrder("bulk", skuShirt, 2)

	require.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 1, f.access(t, "bulk"))
	assert.Equal(t, []string{"bulk"}, f.current(t, e.Main).Products[0].Orders)
}

func TestProductOrderRetriesAfterAccessFailure(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 1})
	f.addOrder("o1", skuShirt, 1)
	h := NewProductOrder(f.deps)

	f.orders.SetError(errors.New("orders down"))
	assert.False(t, h.Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 0, f.access(t, "o1"))

	f.orders.SetError(nil)
	require.True(t, h.Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 1, f.access(t, "o1"))
	assert.Equal(t, []string{"o1"}, f.current(t, e.Main).Products[0].Orders)
}

func TestProductOrderRequiresFbs(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbo, line{skuShirt, 1})
	f.addOrder("o1", skuShirt, 1)

	assert.False(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Equal(t, 0, f.access(t, "o1"))
}

func TestPackageOrdersMovesReadyOrders(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 2})
	f.addOrder("ready", skuShirt, 1)
	f.addOrder("partial", skuShirt, 2)

	require.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
	current := f.current(t, e.Main)
	require.True(t, NewPackageOrders(f.deps, false).Handle(context.Background(), msgFor(current)))

	ready, _ := f.orders.Order("ready")
	partial, _ := f.orders.Order("partial")
	assert.Equal(t, ports.OrderStatusPackage, ready.Status)
	assert.Equal(t, "profile-1", ready.Profile)
	assert.Equal(t, ports.OrderStatusNew, partial.Status)
}

func TestPackageOrdersFailureIsRetried(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 1})
	f.addOrder("o1", skuShirt, 1)
	require.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
	current := f.current(t, e.Main)

	h := NewPackageOrders(f.deps, true)
	f.orders.SetError(errors.New("orders down"))
	assert.False(t, h.Handle(context.Background(), msgFor(current)))

	f.orders.SetError(nil)
	assert.True(t, h.Handle(context.Background(), msgFor(current)))
	o, _ := f.orders.Order("o1")
	assert.Equal(t, ports.OrderStatusPackage, o.Status)
}

func TestPackageProductStockReservesOncePerOrder(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 2})
	f.addOrder("o1", skuShirt, 1)
	f.addOrder("o2", skuShirt, 1)
	require.True(t, NewProductOrder(f.deps).Handle(context.Background(), msgFor(e)))
	current := f.current(t, e.Main)
	require.True(t, NewPackageOrders(f.deps, false).Handle(context.Background(), msgFor(current)))

	h := NewPackageProductStock(f.deps)
	require.True(t, h.Handle(context.Background(), msgFor(current)))
	records := f.stock.Records(ports.StockKindPackage)
	require.Len(t, records, 2)
	assert.Equal(t, "o1", records[0].OrderID)
	assert.Equal(t, "N-o1", records[0].Number)

	// Reservations share the packaging keyspace.
	packaged, err := f.deps.Dedup.Namespace(PackageNamespace).Deduplication("o1", NamePackageProductStock).IsExecuted(context.Background())
	require.NoError(t, err)
	assert.True(t, packaged)
	outside, err := f.deps.Dedup.Deduplication("o1", NamePackageProductStock).IsExecuted(context.Background())
	require.NoError(t, err)
	assert.False(t, outside)

	// A later version does not reserve the same orders again.
	next := current.Clone()
	require.NoError(t, f.repo.Save(context.Background(), next))
	require.True(t, h.Handle(context.Background(), msgFor(next)))
	assert.Len(t, f.stock.Records(ports.StockKindPackage), 2)
}

func TestProductStocksDeduplicatesPerLine(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteStocks, line{skuShirt, 2}, line{skuShirtBlue, 3})
	h := NewProductStocks(f.deps)

	f.stock.SetError(errors.New("warehouse down"))
	assert.False(t, h.Handle(context.Background(), msgFor(e)))
	assert.Empty(t, f.stock.Records(ports.StockKindIncome))

	f.stock.SetError(nil)
	require.True(t, h.Handle(context.Background(), msgFor(e)))
	require.Len(t, f.stock.Records(ports.StockKindIncome), 2)

	require.True(t, h.Handle(context.Background(), msgFor(e)))
	assert.Len(t, f.stock.Records(ports.StockKindIncome), 2)
}

func TestProductStocksSkipsUnknownProducts(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteStocks, line{skuShirt, 2}, line{skuShirtBlue, 3})
	f.identifier.MarkMissing(skuShirt)

	require.True(t, NewProductStocks(f.deps).Handle(context.Background(), msgFor(e)))
	records := f.stock.Records(ports.StockKindIncome)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Lines[0].Total)
	assert.Equal(t, "blue", records[0].Lines[0].Identity.OfferConst)
}

func TestNewOrderFboCreatesOneOrder(t *testing.T) {
	f := newFixture()
	p, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbo, line{skuShirt, 4})
	f.profiles.Set("profile-1", "user-1")
	h := NewNewOrderFbo(f.deps)

	require.True(t, h.Handle(context.Background(), msgFor(e)))
	require.True(t, h.Handle(context.Background(), msgFor(e)))

	created := f.orders.Created()
	require.Len(t, created, 1)
	assert.Equal(t, p.Number, created[0].Number)
	assert.Equal(t, part.DeliveryWildberriesFbo, created[0].Delivery)
	require.Len(t, created[0].Lines, 1)
	assert.Equal(t, 4, created[0].Lines[0].Total)
}

func TestNewOrderFboRequiresFbo(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusCompleted, part.CompleteWildberriesFbs, line{skuShirt, 4})

	assert.False(t, NewNewOrderFbo(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Empty(t, f.orders.Created())
}

func TestAddUserTableCreditsOnce(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusOpen, part.CompleteNothing, line{skuShirt, 6})
	next := e.Clone()
	next.Status = part.StatusPackage
	next.AssignWorking(&part.Working{Stage: "sewing", Profile: "worker-1"})
	require.NoError(t, f.repo.Save(context.Background(), next))
	h := NewAddUserTable(f.deps)

	require.True(t, h.Handle(context.Background(), msgFor(next)))
	require.True(t, h.Handle(context.Background(), msgFor(next)))

	assert.Equal(t, 6, f.timesheet.Balance("worker-1"))
	entries := f.timesheet.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "sewing", entries[0].Stage)
}

func TestAddUserTableIgnoresUnassignedStage(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusPackage, part.CompleteNothing, line{skuShirt, 6})

	assert.False(t, NewAddUserTable(f.deps).Handle(context.Background(), msgFor(e)))
	assert.Empty(t, f.timesheet.Entries())
}

func TestSubUserTableDebitsDefect(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusDefect, part.CompleteNothing, line{skuShirt, 6})
	blamed := e.Clone()
	blamed.AssignWorking(&part.Working{Stage: "sewing", Profile: "worker-1"})
	require.NoError(t, f.repo.Save(context.Background(), blamed))
	h := NewSubUserTable(f.deps)

	assert.False(t, h.Handle(context.Background(), msgFor(blamed)))

	msg := msgFor(blamed).WithTotal(2)
	require.True(t, h.Handle(context.Background(), msg))
	require.True(t, h.Handle(context.Background(), msg))
	assert.Equal(t, -2, f.timesheet.Balance("worker-1"))
}

func TestSubUserTableKeepsMarkerOnFailure(t *testing.T) {
	f := newFixture()
	_, e := f.seed(t, part.StatusDefect, part.CompleteNothing, line{skuShirt, 6})
	blamed := e.Clone()
	blamed.AssignWorking(&part.Working{Stage: "sewing", Profile: "worker-1"})
	require.NoError(t, f.repo.Save(context.Background(), blamed))
	h := NewSubUserTable(f.deps)
	msg := msgFor(blamed).WithTotal(1)

	f.timesheet.SetError(errors.New("timesheet down"))
	assert.False(t, h.Handle(context.Background(), msg))

	f.timesheet.SetError(nil)
	require.True(t, h.Handle(context.Background(), msg))
	assert.Equal(t, -1, f.timesheet.Balance("worker-1"))
}
