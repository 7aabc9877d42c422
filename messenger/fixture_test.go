package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

type fixture struct {
	repo       *store.MemoryRepository
	working    *ports.MemoryWorking
	orders     *ports.MemoryOrders
	stock      *ports.MemoryStock
	timesheet  *ports.MemoryTimesheet
	identifier *ports.MemoryIdentifier
	profiles   *ports.MemoryProfiles
	notifier   *ports.MemoryNotifier
	locks      *ports.MemoryProductLocks
	queue      *transport.MemoryQueue
	deps       Deps
}

func newFixture() *fixture {
	f := &fixture{
		repo:       store.NewMemoryRepository(),
		working:    ports.NewMemoryWorking(),
		orders:     ports.NewMemoryOrders(),
		stock:      ports.NewMemoryStock(),
		timesheet:  ports.NewMemoryTimesheet(),
		identifier: ports.NewMemoryIdentifier(),
		profiles:   ports.NewMemoryProfiles(),
		notifier:   ports.NewMemoryNotifier(),
		locks:      ports.NewMemoryProductLocks(),
		queue:      transport.NewMemoryQueue(),
	}
	f.deps = Deps{
		Repo:         f.repo,
		Dedup:        dedup.New(dedup.NewMemoryStore()),
		Working:      f.working,
		Orders:       f.orders,
		Access:       f.orders,
		OrderStatus:  f.orders,
		NewOrder:     f.orders,
		Identifier:   f.identifier,
		Stock:        f.stock.IncomeHandler(),
		PackageStock: f.stock.PackageHandler(),
		Timesheet:    f.timesheet,
		Profiles:     f.profiles,
		Notifier:     f.notifier,
		Locks:        f.locks,
		Publisher:    f.queue,
		Logger:       logger.Nop{},
	}
	return f
}

type line struct {
	sku   part.SKU
	total int
}

func (f *fixture) seed(t *testing.T, status part.Status, complete part.Complete, lines ...line) (*part.Part, *part.Event) {
	t.Helper()
	p := part.New(time.Now())
	e := part.NewEvent(p.ID, "sewing", "profile-1", complete)
	for _, l := range lines {
		e.AddProduct(l.sku, l.total)
	}
	e.Status = status
	require.NoError(t, f.repo.Create(context.Background(), p, e))
	require.NoError(t, f.repo.SetQuantity(context.Background(), p.ID, e.Sum()))
	return p, e
}

func (f *fixture) current(t *testing.T, partID string) *part.Event {
	t.Helper()
	e, err := f.repo.CurrentEvent(context.Background(), partID)
	require.NoError(t, err)
	return e
}

func (f *fixture) addOrder(id string, sku part.SKU, total int) {
	f.orders.Add(ports.Order{
		ID:       id,
		Number:   "N-" + id,
		Status:   ports.OrderStatusNew,
		Delivery: part.DeliveryWildberriesFbs,
		Lines:    []ports.OrderLine{{ID: id + "-line", SKU: sku, Total: total}},
	})
}

func (f *fixture) access(t *testing.T, orderID string) int {
	t.Helper()
	o, ok := f.orders.Order(orderID)
	require.True(t, ok)
	return o.Lines[0].Access
}

func partMessages(msgs []manufacture.Message) []manufacture.PartMessage {
	var out []manufacture.PartMessage
	for _, m := range msgs {
		if pm, ok := m.(manufacture.PartMessage); ok {
			out = append(out, pm)
		}
	}
	return out
}

func productMessages(msgs []manufacture.Message) []manufacture.ProductMessage {
	var out []manufacture.ProductMessage
	for _, m := range msgs {
		if pm, ok := m.(manufacture.ProductMessage); ok {
			out = append(out, pm)
		}
	}
	return out
}

func msgFor(e *part.Event) manufacture.PartMessage {
	return manufacture.NewPartMessage(e.Main, e.ID)
}
