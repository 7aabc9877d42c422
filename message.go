package manufacture

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-errors"
)

// Message is the interface every payload carried on the bus must implement
type Message interface {
	Type() string
	Validate() error
}

// Aggregated is implemented by messages that belong to a single aggregate.
// The bus serializes the fan-out of messages sharing the same key.
type Aggregated interface {
	AggregateKey() string
}

const (
	PartMessageType    = "manufacture.part"
	ProductMessageType = "manufacture.product"
)

// PartMessage announces that a batch has a new current event.
// Total is only set by defect commands and carries the defective quantity.
type PartMessage struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Total *int   `json:"total,omitempty"`
}

func (PartMessage) Type() string { return PartMessageType }

func (m PartMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("part message requires id", errors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	}
	if strings.TrimSpace(m.Event) == "" {
		return errors.New("part message requires event", errors.CategoryValidation).
			WithTextCode(ErrCodeValidation).
			WithMetadata(map[string]any{"part_id": m.ID})
	}
	if m.Total != nil && *m.Total < 0 {
		return errors.New("part message total must not be negative", errors.CategoryValidation).
			WithTextCode(ErrCodeValidation).
			WithMetadata(map[string]any{"part_id": m.ID, "total": *m.Total})
	}
	return nil
}

func (m PartMessage) AggregateKey() string { return "part:" + m.ID }

// DefectTotal returns the carried defect quantity, zero when absent.
func (m PartMessage) DefectTotal() int {
	if m.Total == nil {
		return 0
	}
	return *m.Total
}

// NewPartMessage builds a message for the given batch and event version.
func NewPartMessage(partID, eventID string) PartMessage {
	return PartMessage{ID: partID, Event: eventID}
}

// WithTotal returns a copy of the message carrying total.
func (m PartMessage) WithTotal(total int) PartMessage {
	m.Total = &total
	return m
}

// ProductMessage locks or releases a product invariable against a batch.
//
//   - Invariable and Manufacture set: lock the invariable to the batch.
//   - only Invariable set: release the invariable for Kind.
//   - only Manufacture set: release every lock held by the batch.
type ProductMessage struct {
	Invariable  string `json:"invariable,omitempty"`
	Manufacture string `json:"manufacture,omitempty"`
	Kind        string `json:"type,omitempty"`
}

func (ProductMessage) Type() string { return ProductMessageType }

func (m ProductMessage) Validate() error {
	if strings.TrimSpace(m.Invariable) == "" && strings.TrimSpace(m.Manufacture) == "" {
		return errors.New("product message requires invariable or manufacture", errors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	}
	return nil
}

func (m ProductMessage) AggregateKey() string {
	if m.Manufacture != "" {
		return "part:" + m.Manufacture
	}
	return "product:" + m.Invariable
}

func IsNilMessage(msg any) bool {
	if msg == nil {
		return true
	}

	v := reflect.ValueOf(msg)
	if v.Kind() != reflect.Ptr {
		return false
	}

	return v.IsNil()
}

// ValidateMessage rejects nil pointers and runs Validate when available.
func ValidateMessage(msg any) error {
	if IsNilMessage(msg) {
		return errors.New("nil message pointer", errors.CategoryValidation).
			WithTextCode("INVALID_MESSAGE")
	}

	if m, ok := msg.(Message); ok {
		if err := m.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "message validation failed").
				WithTextCode(ErrCodeValidation)
		}
	}

	return nil
}
