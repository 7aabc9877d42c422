package part

import (
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-manufacture"
)

// Complete tags the downstream pipeline that consumes a finished batch.
type Complete string

const (
	CompleteNothing        Complete = "nothing"
	CompleteStocks         Complete = "stocks"
	CompleteWildberriesFbo Complete = "wildberries_fbo"
	CompleteWildberriesFbs Complete = "wildberries_fbs"
)

var completes = []Complete{CompleteNothing, CompleteStocks, CompleteWildberriesFbo, CompleteWildberriesFbs}

// Fulfillment identifies the order types a marketplace complete-type maps to.
type Fulfillment struct {
	Delivery string
	Payment  string
	Profile  string
}

const (
	DeliveryWildberriesFbo = "wildberries_fbo"
	DeliveryWildberriesFbs = "wildberries_fbs"
	PaymentWildberriesFbo  = "wildberries_fbo"
	ProfileWildberriesFbo  = "wildberries_fbo"
)

var fulfillments = map[Complete]Fulfillment{
	CompleteWildberriesFbo: {
		Delivery: DeliveryWildberriesFbo,
		Payment:  PaymentWildberriesFbo,
		Profile:  ProfileWildberriesFbo,
	},
	CompleteWildberriesFbs: {
		Delivery: DeliveryWildberriesFbs,
	},
}

// Completes returns every complete-type, the default first.
func Completes() []Complete {
	out := make([]Complete, len(completes))
	copy(out, completes)
	return out
}

// ParseComplete resolves a complete-type name. Empty input yields CompleteNothing.
func ParseComplete(value string) (Complete, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return CompleteNothing, nil
	}
	c := Complete(value)
	if !c.Valid() {
		return "", errors.New("unknown manufacture part complete type", errors.CategoryValidation).
			WithTextCode(manufacture.ErrCodeValidation).
			WithMetadata(map[string]any{"complete": value})
	}
	return c, nil
}

func (c Complete) String() string { return string(c) }

func (c Complete) Valid() bool {
	for _, known := range completes {
		if c == known {
			return true
		}
	}
	return false
}

func (c Complete) IsFbo() bool { return c == CompleteWildberriesFbo }

func (c Complete) IsFbs() bool { return c == CompleteWildberriesFbs }

// Fulfillment returns the order types for marketplace complete-types.
func (c Complete) Fulfillment() (Fulfillment, bool) {
	f, ok := fulfillments[c]
	return f, ok
}
