package ports

import (
	"context"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/part"
)

// Contracts of the collaborators that live in other bounded contexts.
// Lookups return (nil, nil) when nothing matches; errors are reserved for
// infrastructure failures. Mutating collaborators return a Result.

// WorkingLookup resolves the next incomplete production stage of a batch.
type WorkingLookup interface {
	NextStage(ctx context.Context, partID string) (stage string, ok bool, err error)
}

type OrderStatus string

const (
	OrderStatusNew     OrderStatus = "new"
	OrderStatusPackage OrderStatus = "package"
)

// OrderLine is one SKU of an order. Access counts units confirmed ready.
type OrderLine struct {
	ID     string
	SKU    part.SKU
	Total  int
	Access int
}

// Ready reports whether every unit of the line is ready for packaging.
func (l OrderLine) Ready() bool { return l.Access >= l.Total }

type Order struct {
	ID       string
	Number   string
	Status   OrderStatus
	Delivery string
	Profile  string
	Lines    []OrderLine
}

// AllReady reports whether every line is ready for packaging.
func (o Order) AllReady() bool {
	for _, l := range o.Lines {
		if !l.Ready() {
			return false
		}
	}
	return len(o.Lines) > 0
}

func (o Order) Clone() Order {
	cp := o
	if o.Lines != nil {
		cp.Lines = make([]OrderLine, len(o.Lines))
		copy(cp.Lines, o.Lines)
	}
	return cp
}

// OrderQuery selects a new order for a delivery type that still needs
// production of the exact SKU. Exclude skips orders already visited.
type OrderQuery struct {
	Delivery string
	SKU      part.SKU
	Exclude  []string
}

type OrderLookup interface {
	RelevantNewOrder(ctx context.Context, q OrderQuery) (*Order, error)
	CurrentOrder(ctx context.Context, orderID string) (*Order, error)
}

// OrderAccessUpdate marks one more unit of an order line ready.
type OrderAccessUpdate interface {
	Increment(ctx context.Context, lineID string) error
}

type OrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
	Profile string
}

type OrderStatusTransition interface {
	Apply(ctx context.Context, cmd OrderStatusCommand) manufacture.Result[*Order]
}

type NewOrderLine struct {
	SKU   part.SKU
	Total int
	Price int
}

type NewOrderCommand struct {
	Profile     string
	User        string
	Number      string
	Fulfillment part.Fulfillment
	Lines       []NewOrderLine
}

type NewOrderHandler interface {
	Handle(ctx context.Context, cmd NewOrderCommand) manufacture.Result[*Order]
}

// ProductIdentity holds the constant identifiers of a product variant.
type ProductIdentity struct {
	Product           string
	OfferConst        string
	VariationConst    string
	ModificationConst string
}

// ProductIdentifier resolves a SKU to its current product identity.
type ProductIdentifier interface {
	Current(ctx context.Context, sku part.SKU) (*ProductIdentity, error)
}

type StockLine struct {
	Identity ProductIdentity
	Total    int
}

type StockKind string

const (
	StockKindIncome  StockKind = "income"
	StockKindPackage StockKind = "package"
)

type StockRecord struct {
	ID      string
	Kind    StockKind
	PartID  string
	OrderID string
	Number  string
	Profile string
	Lines   []StockLine
}

type StockIncomeCommand struct {
	PartID  string
	Profile string
	Lines   []StockLine
}

// StockRequestHandler increases warehouse quantities.
type StockRequestHandler interface {
	Handle(ctx context.Context, cmd StockIncomeCommand) manufacture.Result[*StockRecord]
}

type PackageStockCommand struct {
	OrderID     string
	OrderNumber string
	Profile     string
	Lines       []StockLine
}

// PackageStockRequestHandler reserves stock for an order pick/pack.
type PackageStockRequestHandler interface {
	Handle(ctx context.Context, cmd PackageStockCommand) manufacture.Result[*StockRecord]
}

// TimesheetEntry credits (positive) or debits (negative) an employee.
type TimesheetEntry struct {
	Profile  string
	Stage    string
	PartID   string
	EventID  string
	Quantity int
}

type TimesheetRecord struct {
	ID    string
	Entry TimesheetEntry
}

type TimesheetHandler interface {
	Handle(ctx context.Context, entry TimesheetEntry) manufacture.Result[*TimesheetRecord]
}

// ProfileLookup resolves the user owning a profile.
type ProfileLookup interface {
	UserOf(ctx context.Context, profile string) (user string, ok bool, err error)
}

// Notifier pushes realtime notifications to connected clients.
type Notifier interface {
	Publish(ctx context.Context, channel string, data map[string]any) error
}

// ProductLocks tracks product invariables reserved by a batch.
type ProductLocks interface {
	Lock(ctx context.Context, invariable, partID, kind string) error
	ReleaseByInvariable(ctx context.Context, invariable, kind string) error
	ReleaseByPart(ctx context.Context, partID string) error
}
