package part

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "176.087.520.000", Number(time.Unix(1760875200, 0)))
	assert.Equal(t, "176.087.520.012", Number(time.Unix(1760875200, 123_000_000)))
	assert.Equal(t, "1.000", Number(time.Unix(10, 0)))
	assert.Equal(t, "0", Number(time.Unix(0, 0)))
}

func TestNewPart(t *testing.T) {
	now := time.Date(2025, 10, 19, 12, 0, 0, 0, time.FixedZone("X", 3600))
	p := New(now)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, Number(now), p.Number)
	assert.Equal(t, time.UTC, p.Created.Location())
}

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusOpen:      {StatusOpen, StatusPackage, StatusClosed},
		StatusPackage:   {StatusPackage, StatusDefect, StatusCompleted, StatusClosed},
		StatusDefect:    {StatusPackage, StatusDefect, StatusCompleted, StatusClosed},
		StatusCompleted: {StatusClosed},
		StatusClosed:    {},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := to.In(allowed[from]...)
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestEventTransitionRejectsForbiddenMove(t *testing.T) {
	e := NewEvent("p1", "sew", "profile", CompleteNothing)
	require.NoError(t, e.Transition(StatusPackage))
	require.NoError(t, e.Transition(StatusCompleted))

	err := e.Transition(StatusPackage)
	assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeInvalidTransition))
	assert.Equal(t, StatusCompleted, e.Status)
}

func TestParseStatusAndComplete(t *testing.T) {
	s, err := ParseStatus(" Package ")
	require.NoError(t, err)
	assert.Equal(t, StatusPackage, s)

	_, err = ParseStatus("shipped")
	assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeValidation))

	c, err := ParseComplete("")
	require.NoError(t, err)
	assert.Equal(t, CompleteNothing, c)

	c, err = ParseComplete("WILDBERRIES_FBS")
	require.NoError(t, err)
	assert.True(t, c.IsFbs())

	_, err = ParseComplete("ozon")
	assert.Error(t, err)

	assert.True(t, StatusClosed.Terminal())
	assert.False(t, StatusDefect.Terminal())
}

func TestCompleteFulfillment(t *testing.T) {
	f, ok := CompleteWildberriesFbo.Fulfillment()
	require.True(t, ok)
	assert.Equal(t, DeliveryWildberriesFbo, f.Delivery)
	assert.Equal(t, PaymentWildberriesFbo, f.Payment)

	f, ok = CompleteWildberriesFbs.Fulfillment()
	require.True(t, ok)
	assert.Equal(t, DeliveryWildberriesFbs, f.Delivery)

	_, ok = CompleteStocks.Fulfillment()
	assert.False(t, ok)
}

func TestSKUMatchesExactly(t *testing.T) {
	full := SKU{Product: "p", Offer: "o", Variation: "v"}

	assert.True(t, full.Matches(SKU{Product: "p", Offer: "o", Variation: "v"}))
	assert.False(t, full.Matches(SKU{Product: "p", Offer: "o"}))
	assert.False(t, SKU{Product: "p", Offer: "o"}.Matches(full))
	assert.False(t, full.Matches(SKU{Product: "p", Offer: "o", Variation: "v", Modification: "m"}))
}

func TestSKUIdentifier(t *testing.T) {
	assert.Equal(t, "m", SKU{Product: "p", Offer: "o", Variation: "v", Modification: "m"}.Identifier())
	assert.Equal(t, "v", SKU{Product: "p", Offer: "o", Variation: "v"}.Identifier())
	assert.Equal(t, "o", SKU{Product: "p", Offer: "o"}.Identifier())
	assert.Equal(t, "p", SKU{Product: "p"}.Identifier())
	assert.Equal(t, "p/o/-/-", SKU{Product: "p", Offer: "o"}.String())
	assert.False(t, SKU{Offer: "o"}.Valid())
}

func TestProductApplyDefect(t *testing.T) {
	p := Product{ID: "l1", Total: 3}

	require.NoError(t, p.ApplyDefect(2))
	assert.Equal(t, 1, p.Total)
	assert.Equal(t, 2, p.Defect)

	err := p.ApplyDefect(2)
	assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeDefectExceedsTotal))
	assert.Equal(t, 1, p.Total)

	err = p.ApplyDefect(0)
	assert.True(t, manufacture.HasCode(err, manufacture.ErrCodeValidation))

	require.NoError(t, p.ApplyDefect(1))
	assert.True(t, p.Empty())
}

func TestProductOrders(t *testing.T) {
	p := Product{Total: 2}
	assert.False(t, p.Saturated())
	assert.True(t, p.AddOrder("o1"))
	assert.False(t, p.AddOrder("o1"))
	assert.False(t, p.AddOrder(""))
	assert.True(t, p.AddOrder("o2"))
	assert.True(t, p.Saturated())
	assert.True(t, p.HasOrder("o2"))
}

func TestEventProducts(t *testing.T) {
	e := NewEvent("p1", "sew", "profile", CompleteWildberriesFbs)
	a := SKU{Product: "a"}
	b := SKU{Product: "b", Offer: "x"}

	e.AddProduct(a, 2)
	e.AddProduct(b, 1)
	e.AddProduct(a, 3)

	require.Len(t, e.Products, 2)
	assert.Equal(t, 6, e.Sum())
	line, ok := e.ProductBySKU(a)
	require.True(t, ok)
	assert.Equal(t, 5, line.Total)

	got, ok := e.Product(line.ID)
	require.True(t, ok)
	assert.Equal(t, a, got.SKU)

	sorted := e.SortedProducts()
	assert.Equal(t, a, sorted[0].SKU)
	assert.Equal(t, b, sorted[1].SKU)

	require.NoError(t, got.ApplyDefect(5))
	assert.Equal(t, 1, e.RemoveEmpty())
	require.Len(t, e.Products, 1)
	assert.Equal(t, b, e.Products[0].SKU)
}

func TestEventCloneIsDeep(t *testing.T) {
	e := NewEvent("p1", "sew", "profile", CompleteWildberriesFbs)
	e.AddProduct(SKU{Product: "a"}, 2).AddOrder("o1")
	e.AssignWorking(&Working{Stage: "cut", Profile: "w1"})

	cp := e.Clone()
	assert.NotEqual(t, e.ID, cp.ID)
	assert.Equal(t, e.Main, cp.Main)

	cp.Products[0].AddOrder("o2")
	cp.Working.Stage = "sew"
	cp.Products[0].Total = 9

	assert.Equal(t, []string{"o1"}, e.Products[0].Orders)
	assert.Equal(t, "cut", e.Working.Stage)
	assert.Equal(t, 2, e.Products[0].Total)

	same := e.Copy()
	assert.Equal(t, e.ID, same.ID)
}

func TestGuards(t *testing.T) {
	event := func(status Status, complete Complete, w *Working) *Event {
		e := NewEvent("p1", "sew", "profile", complete)
		e.Status = status
		e.Working = w
		return e
	}
	assigned := &Working{Stage: "cut", Profile: "w1"}

	assert.False(t, CanComplete(nil))
	assert.False(t, CanComplete(event(StatusOpen, CompleteNothing, nil)))
	assert.True(t, CanComplete(event(StatusDefect, CompleteNothing, nil)))

	assert.True(t, IsCompletedFbo(event(StatusCompleted, CompleteWildberriesFbo, nil)))
	assert.False(t, IsCompletedFbo(event(StatusCompleted, CompleteWildberriesFbs, nil)))
	assert.True(t, IsCompletedFbs(event(StatusCompleted, CompleteWildberriesFbs, nil)))
	assert.False(t, IsCompletedFbs(event(StatusPackage, CompleteWildberriesFbs, nil)))

	assert.True(t, CanCloseByZero(event(StatusPackage, CompleteNothing, nil), 0))
	assert.False(t, CanCloseByZero(event(StatusPackage, CompleteNothing, nil), 1))
	assert.False(t, CanCloseByZero(event(StatusOpen, CompleteNothing, nil), 0))

	assert.True(t, IsWorkingPackage(event(StatusPackage, CompleteNothing, assigned)))
	assert.False(t, IsWorkingPackage(event(StatusPackage, CompleteNothing, &Working{Stage: "cut"})))
	assert.True(t, IsWorkingDefect(event(StatusDefect, CompleteNothing, assigned)))
	assert.False(t, IsWorkingDefect(event(StatusPackage, CompleteNothing, assigned)))

	assert.True(t, AcceptsProducts(event(StatusOpen, CompleteNothing, nil)))
	assert.False(t, AcceptsProducts(event(StatusPackage, CompleteNothing, nil)))
}
