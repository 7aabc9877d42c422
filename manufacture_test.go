package manufacture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartMessageValidate(t *testing.T) {
	assert.NoError(t, NewPartMessage("p1", "e1").Validate())
	assert.True(t, HasCode(PartMessage{Event: "e1"}.Validate(), ErrCodeValidation))
	assert.True(t, HasCode(PartMessage{ID: "p1"}.Validate(), ErrCodeValidation))
	assert.True(t, HasCode(NewPartMessage("p1", "e1").WithTotal(-1).Validate(), ErrCodeValidation))

	msg := NewPartMessage("p1", "e1")
	assert.Equal(t, 0, msg.DefectTotal())
	withTotal := msg.WithTotal(3)
	assert.Equal(t, 3, withTotal.DefectTotal())
	assert.Nil(t, msg.Total)
	assert.Equal(t, "part:p1", msg.AggregateKey())
	assert.Equal(t, PartMessageType, msg.Type())
}

func TestProductMessageValidate(t *testing.T) {
	assert.True(t, HasCode(ProductMessage{}.Validate(), ErrCodeValidation))
	assert.NoError(t, ProductMessage{Invariable: "inv"}.Validate())

	assert.Equal(t, "part:p1", ProductMessage{Invariable: "inv", Manufacture: "p1"}.AggregateKey())
	assert.Equal(t, "product:inv", ProductMessage{Invariable: "inv"}.AggregateKey())
}

func TestValidateMessage(t *testing.T) {
	var nilMsg *PartMessage
	assert.Error(t, ValidateMessage(nilMsg))
	assert.True(t, HasCode(ValidateMessage(PartMessage{}), ErrCodeValidation))
	assert.NoError(t, ValidateMessage(NewPartMessage("p1", "e1")))
}

func TestNewErrorClonesBase(t *testing.T) {
	src := errors.New("driver")
	err := NewError(ErrPartNotFound, "batch p1 missing", src, map[string]any{"part_id": "p1"})

	assert.Equal(t, ErrCodePartNotFound, ErrorCode(err))
	assert.Equal(t, "manufacture part not found", ErrPartNotFound.Message)
	assert.ErrorIs(t, err, src)

	assert.Equal(t, ErrCodeValidation, ErrorCode(NewError(nil, "", nil, nil)))
	assert.Empty(t, ErrorCode(errors.New("plain")))
	assert.False(t, HasCode(nil, ErrCodeValidation))
}

func TestResult(t *testing.T) {
	ok := OK(5)
	v, present := ok.Value()
	assert.True(t, ok.IsOK())
	assert.True(t, present)
	assert.Equal(t, 5, v)
	assert.Empty(t, ok.ErrorID())
	assert.Equal(t, "ok", ok.String())

	failed := Fail[int](ErrDownstream)
	assert.False(t, failed.IsOK())
	assert.Len(t, failed.ErrorID(), 12)
	assert.Equal(t, failed.ErrorID(), failed.String())
	assert.ErrorIs(t, failed.Err(), ErrDownstream)

	assert.Equal(t, "abc", FailWithID[int]("abc", nil).ErrorID())
	assert.NotEmpty(t, FailWithID[int]("", nil).ErrorID())
}

type namedHandler struct{}

func (namedHandler) Name() string { return "custom" }

func (namedHandler) Handle(context.Context, PartMessage) bool { return true }

type ProductsSumHandler struct{}

func (*ProductsSumHandler) Handle(context.Context, PartMessage) bool { return true }

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "custom", HandlerName(namedHandler{}))
	assert.Equal(t, "go-manufacture::products_sum_handler", HandlerName(&ProductsSumHandler{}))
	assert.Equal(t, "unknown_handler", HandlerName(nil))
}

func TestPanicError(t *testing.T) {
	err := PanicError("h", "boom", CaptureStack())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeHandlerPanic))
	assert.Contains(t, err.Error(), "boom")

	cause := errors.New("cause")
	assert.ErrorIs(t, PanicError("h", cause, nil), cause)
}
