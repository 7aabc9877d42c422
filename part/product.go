package part

import (
	"github.com/goliatone/go-manufacture"
)

// Product is one SKU line of a batch event. Total is already net of Defect.
type Product struct {
	ID     string   `json:"id" bson:"id"`
	SKU    SKU      `json:"sku" bson:"sku"`
	Total  int      `json:"total" bson:"total"`
	Defect int      `json:"defect" bson:"defect"`
	Orders []string `json:"orders,omitempty" bson:"orders,omitempty"`
	Sort   int      `json:"sort" bson:"sort"`
}

// ApplyDefect moves n units from Total to Defect.
func (p *Product) ApplyDefect(n int) error {
	if n <= 0 {
		return manufacture.NewError(manufacture.ErrValidation, "defect total must be positive", nil, map[string]any{
			"product_id": p.ID,
			"defect":     n,
		})
	}
	if n > p.Total {
		return manufacture.NewError(manufacture.ErrDefectExceedsTotal, "", nil, map[string]any{
			"product_id": p.ID,
			"total":      p.Total,
			"defect":     n,
		})
	}
	p.Total -= n
	p.Defect += n
	return nil
}

// Empty reports whether nothing remains to produce on the line.
func (p Product) Empty() bool { return p.Total <= 0 }

// Saturated reports whether every produced unit is associated with an order.
func (p Product) Saturated() bool { return len(p.Orders) >= p.Total }

func (p Product) HasOrder(orderID string) bool {
	for _, id := range p.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

// AddOrder records an order association, ignoring duplicates.
func (p *Product) AddOrder(orderID string) bool {
	if orderID == "" || p.HasOrder(orderID) {
		return false
	}
	p.Orders = append(p.Orders, orderID)
	return true
}

func (p Product) clone() Product {
	cp := p
	if p.Orders != nil {
		cp.Orders = make([]string, len(p.Orders))
		copy(cp.Orders, p.Orders)
	}
	return cp
}
