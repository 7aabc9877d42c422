package ports

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/part"
)

// In-memory collaborators used by tests and the local worker mode.

// MemoryWorking tracks the remaining production stages per batch.
type MemoryWorking struct {
	mu     sync.RWMutex
	stages map[string][]string
}

func NewMemoryWorking() *MemoryWorking {
	return &MemoryWorking{stages: make(map[string][]string)}
}

// SetStages replaces the remaining stages of a batch.
func (w *MemoryWorking) SetStages(partID string, stages ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages[partID] = append([]string(nil), stages...)
}

// CompleteStage pops the next stage and returns it.
func (w *MemoryWorking) CompleteStage(partID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	stages := w.stages[partID]
	if len(stages) == 0 {
		return "", false
	}
	w.stages[partID] = stages[1:]
	return stages[0], true
}

func (w *MemoryWorking) NextStage(_ context.Context, partID string) (string, bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stages := w.stages[partID]
	if len(stages) == 0 {
		return "", false, nil
	}
	return stages[0], true, nil
}

// MemoryOrders serves order lookups and mutations from memory.
type MemoryOrders struct {
	mu      sync.RWMutex
	orders  map[string]*Order
	seq     []string
	created []string
	err     error
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]*Order)}
}

// Add stores an order; lookups visit orders in insertion order.
func (m *MemoryOrders) Add(o Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; !exists {
		m.seq = append(m.seq, o.ID)
	}
	cp := o.Clone()
	m.orders[o.ID] = &cp
}

// SetError makes every mutating call fail with err until reset with nil.
func (m *MemoryOrders) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MemoryOrders) Order(id string) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return o.Clone(), true
}

// Created returns the orders produced by Handle.
func (m *MemoryOrders) Created() []Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Order, 0, len(m.created))
	for _, id := range m.created {
		out = append(out, m.orders[id].Clone())
	}
	return out
}

func (m *MemoryOrders) RelevantNewOrder(_ context.Context, q OrderQuery) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	excluded := make(map[string]struct{}, len(q.Exclude))
	for _, id := range q.Exclude {
		excluded[id] = struct{}{}
	}
	for _, id := range m.seq {
		if _, skip := excluded[id]; skip {
			continue
		}
		o := m.orders[id]
		if o.Status != OrderStatusNew || o.Delivery != q.Delivery {
			continue
		}
		for _, l := range o.Lines {
			if l.SKU.Matches(q.SKU) && !l.Ready() {
				cp := o.Clone()
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (m *MemoryOrders) CurrentOrder(_ context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := o.Clone()
	return &cp, nil
}

func (m *MemoryOrders) Increment(_ context.Context, lineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, o := range m.orders {
		for i := range o.Lines {
			if o.Lines[i].ID == lineID {
				o.Lines[i].Access++
				return nil
			}
		}
	}
	return manufacture.NewError(manufacture.ErrDownstream, "order line not found", nil, map[string]any{"line_id": lineID})
}

func (m *MemoryOrders) Apply(_ context.Context, cmd OrderStatusCommand) manufacture.Result[*Order] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return manufacture.Fail[*Order](m.err)
	}
	o, ok := m.orders[cmd.OrderID]
	if !ok {
		return manufacture.Fail[*Order](manufacture.NewError(manufacture.ErrDownstream, "order not found", nil, map[string]any{
			"order_id": cmd.OrderID,
		}))
	}
	o.Status = cmd.Status
	if cmd.Profile != "" {
		o.Profile = cmd.Profile
	}
	cp := o.Clone()
	return manufacture.OK(&cp)
}

func (m *MemoryOrders) Handle(_ context.Context, cmd NewOrderCommand) manufacture.Result[*Order] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return manufacture.Fail[*Order](m.err)
	}
	o := &Order{
		ID:       uuid.NewString(),
		Number:   cmd.Number,
		Status:   OrderStatusNew,
		Delivery: cmd.Fulfillment.Delivery,
		Profile:  cmd.Profile,
	}
	for _, l := range cmd.Lines {
		o.Lines = append(o.Lines, OrderLine{ID: uuid.NewString(), SKU: l.SKU, Total: l.Total})
	}
	m.orders[o.ID] = o
	m.seq = append(m.seq, o.ID)
	m.created = append(m.created, o.ID)
	cp := o.Clone()
	return manufacture.OK(&cp)
}

// MemoryStock records stock income and package requests.
type MemoryStock struct {
	mu      sync.RWMutex
	records []StockRecord
	err     error
}

func NewMemoryStock() *MemoryStock {
	return &MemoryStock{}
}

func (s *MemoryStock) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Increase records a stock income request.
func (s *MemoryStock) Increase(_ context.Context, cmd StockIncomeCommand) manufacture.Result[*StockRecord] {
	return s.record(StockRecord{
		Kind:    StockKindIncome,
		PartID:  cmd.PartID,
		Profile: cmd.Profile,
		Lines:   append([]StockLine(nil), cmd.Lines...),
	})
}

// Reserve records a package stock request.
func (s *MemoryStock) Reserve(_ context.Context, cmd PackageStockCommand) manufacture.Result[*StockRecord] {
	return s.record(StockRecord{
		Kind:    StockKindPackage,
		OrderID: cmd.OrderID,
		Number:  cmd.OrderNumber,
		Profile: cmd.Profile,
		Lines:   append([]StockLine(nil), cmd.Lines...),
	})
}

func (s *MemoryStock) IncomeHandler() StockRequestHandler { return StockRequestFunc(s.Increase) }

func (s *MemoryStock) PackageHandler() PackageStockRequestHandler {
	return PackageStockRequestFunc(s.Reserve)
}

// Records returns the stored records of kind.
func (s *MemoryStock) Records(kind StockKind) []StockRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StockRecord
	for _, r := range s.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStock) record(r StockRecord) manufacture.Result[*StockRecord] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return manufacture.Fail[*StockRecord](s.err)
	}
	r.ID = uuid.NewString()
	s.records = append(s.records, r)
	cp := r
	return manufacture.OK(&cp)
}

// MemoryTimesheet accumulates timesheet entries.
type MemoryTimesheet struct {
	mu      sync.RWMutex
	entries []TimesheetEntry
	err     error
}

func NewMemoryTimesheet() *MemoryTimesheet {
	return &MemoryTimesheet{}
}

func (t *MemoryTimesheet) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *MemoryTimesheet) Handle(_ context.Context, entry TimesheetEntry) manufacture.Result[*TimesheetRecord] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return manufacture.Fail[*TimesheetRecord](t.err)
	}
	t.entries = append(t.entries, entry)
	return manufacture.OK(&TimesheetRecord{ID: uuid.NewString(), Entry: entry})
}

func (t *MemoryTimesheet) Entries() []TimesheetEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]TimesheetEntry(nil), t.entries...)
}

// Balance sums the quantities booked for profile.
func (t *MemoryTimesheet) Balance(profile string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, e := range t.entries {
		if e.Profile == profile {
			total += e.Quantity
		}
	}
	return total
}

// MemoryIdentifier resolves every SKU to itself unless marked missing.
type MemoryIdentifier struct {
	mu      sync.RWMutex
	missing map[part.SKU]struct{}
}

func NewMemoryIdentifier() *MemoryIdentifier {
	return &MemoryIdentifier{missing: make(map[part.SKU]struct{})}
}

func (m *MemoryIdentifier) MarkMissing(sku part.SKU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[sku] = struct{}{}
}

func (m *MemoryIdentifier) Current(_ context.Context, sku part.SKU) (*ProductIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.missing[sku]; ok {
		return nil, nil
	}
	return &ProductIdentity{
		Product:           sku.Product,
		OfferConst:        sku.Offer,
		VariationConst:    sku.Variation,
		ModificationConst: sku.Modification,
	}, nil
}

// MemoryProfiles maps profiles to users.
type MemoryProfiles struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{users: make(map[string]string)}
}

func (m *MemoryProfiles) Set(profile, user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[profile] = user
}

func (m *MemoryProfiles) UserOf(_ context.Context, profile string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[profile]
	return user, ok, nil
}

// Notification is one published notifier payload.
type Notification struct {
	Channel string
	Data    map[string]any
}

// MemoryNotifier records published notifications.
type MemoryNotifier struct {
	mu   sync.RWMutex
	sent []Notification
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Publish(_ context.Context, channel string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}
	n.sent = append(n.sent, Notification{Channel: channel, Data: cp})
	return nil
}

// Published returns the notifications sent on channel.
func (n *MemoryNotifier) Published(channel string) []Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Notification
	for _, s := range n.sent {
		if s.Channel == channel {
			out = append(out, s)
		}
	}
	return out
}

type productLock struct {
	partID string
	kind   string
}

// MemoryProductLocks tracks invariable locks in memory.
type MemoryProductLocks struct {
	mu    sync.RWMutex
	locks map[string]productLock
}

func NewMemoryProductLocks() *MemoryProductLocks {
	return &MemoryProductLocks{locks: make(map[string]productLock)}
}

func (m *MemoryProductLocks) Lock(_ context.Context, invariable, partID, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[invariable] = productLock{partID: partID, kind: kind}
	return nil
}

func (m *MemoryProductLocks) ReleaseByInvariable(_ context.Context, invariable, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[invariable]; ok && (kind == "" || l.kind == kind) {
		delete(m.locks, invariable)
	}
	return nil
}

func (m *MemoryProductLocks) ReleaseByPart(_ context.Context, partID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for inv, l := range m.locks {
		if l.partID == partID {
			delete(m.locks, inv)
		}
	}
	return nil
}

// LockedBy returns the batch holding invariable.
func (m *MemoryProductLocks) LockedBy(invariable string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locks[invariable]
	return l.partID, ok
}
