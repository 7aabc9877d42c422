package part

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-manufacture"
)

// Event is one version of the mutable batch state. Commands clone the
// current event, mutate the clone and replace the current pointer.
type Event struct {
	ID       string    `json:"id" bson:"id"`
	Main     string    `json:"main" bson:"main"`
	Action   string    `json:"action" bson:"action"`
	Profile  string    `json:"profile" bson:"profile"`
	Fixed    string    `json:"fixed,omitempty" bson:"fixed,omitempty"`
	Status   Status    `json:"status" bson:"status"`
	Complete Complete  `json:"complete" bson:"complete"`
	Working  *Working  `json:"working,omitempty" bson:"working,omitempty"`
	Products []Product `json:"products" bson:"products"`
	Comment  string    `json:"comment,omitempty" bson:"comment,omitempty"`
	Modified time.Time `json:"modified" bson:"modified"`
}

// NewEvent creates the first, Open version of a batch.
func NewEvent(partID, action, profile string, complete Complete) *Event {
	if complete == "" {
		complete = CompleteNothing
	}
	return &Event{
		ID:       uuid.NewString(),
		Main:     partID,
		Action:   action,
		Profile:  profile,
		Status:   StatusOpen,
		Complete: complete,
		Modified: time.Now().UTC(),
	}
}

// Clone returns a deep copy under a new version id.
func (e *Event) Clone() *Event {
	cp := e.Copy()
	cp.ID = uuid.NewString()
	cp.Modified = time.Now().UTC()
	return cp
}

// Copy returns a deep copy keeping the version id.
func (e *Event) Copy() *Event {
	cp := *e
	if e.Working != nil {
		w := *e.Working
		cp.Working = &w
	}
	if e.Products != nil {
		cp.Products = make([]Product, len(e.Products))
		for i, p := range e.Products {
			cp.Products[i] = p.clone()
		}
	}
	return &cp
}

// Sum returns the produced quantity across lines.
func (e *Event) Sum() int {
	total := 0
	for _, p := range e.Products {
		total += p.Total
	}
	return total
}

// Product returns the line with the given id.
func (e *Event) Product(id string) (*Product, bool) {
	for i := range e.Products {
		if e.Products[i].ID == id {
			return &e.Products[i], true
		}
	}
	return nil, false
}

// ProductBySKU returns the line producing the exact SKU.
func (e *Event) ProductBySKU(sku SKU) (*Product, bool) {
	for i := range e.Products {
		if e.Products[i].SKU.Matches(sku) {
			return &e.Products[i], true
		}
	}
	return nil, false
}

// AddProduct appends a line, or increases the total of the line with the same SKU.
func (e *Event) AddProduct(sku SKU, total int) *Product {
	if p, ok := e.ProductBySKU(sku); ok {
		p.Total += total
		return p
	}
	next := 0
	for _, p := range e.Products {
		if p.Sort >= next {
			next = p.Sort + 1
		}
	}
	e.Products = append(e.Products, Product{
		ID:    uuid.NewString(),
		SKU:   sku,
		Total: total,
		Sort:  next,
	})
	return &e.Products[len(e.Products)-1]
}

// RemoveEmpty drops lines with nothing left to produce and returns how many were removed.
func (e *Event) RemoveEmpty() int {
	kept := e.Products[:0]
	removed := 0
	for _, p := range e.Products {
		if p.Empty() {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	e.Products = kept
	return removed
}

// SortedProducts returns the lines in insertion order.
func (e *Event) SortedProducts() []Product {
	out := make([]Product, len(e.Products))
	copy(out, e.Products)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sort < out[j].Sort })
	return out
}

// Transition moves the event to status, rejecting moves the lifecycle forbids.
func (e *Event) Transition(to Status) error {
	if !CanTransition(e.Status, to) {
		return manufacture.NewError(manufacture.ErrInvalidTransition, "", nil, map[string]any{
			"event_id": e.ID,
			"from":     string(e.Status),
			"to":       string(to),
		})
	}
	e.Status = to
	return nil
}

func (e *Event) ResetWorking() { e.Working = nil }

// AssignWorking copies w onto the event.
func (e *Event) AssignWorking(w *Working) {
	if w == nil {
		e.Working = nil
		return
	}
	cp := *w
	e.Working = &cp
}
