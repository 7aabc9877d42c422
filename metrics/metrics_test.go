package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/dispatcher"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/ports"
)

var (
	_ dispatcher.Observer     = (*Collector)(nil)
	_ dedup.Observer          = (*Collector)(nil)
	_ part.TransitionObserver = (*Collector)(nil)
	_ ports.StateListener     = (&Collector{}).BreakerStateChanged
)

func TestCollectorCountsHandlers(t *testing.T) {
	c := New(nil)
	c.ObserveHandler("manufacture.part", "sum", dispatcher.OutcomeHandled, 5*time.Millisecond)
	c.ObserveHandler("manufacture.part", "sum", dispatcher.OutcomeHandled, 5*time.Millisecond)
	c.ObserveHandler("manufacture.part", "sum", dispatcher.OutcomeSkipped, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.handlerTotal.WithLabelValues("manufacture.part", "sum", "handled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.handlerTotal.WithLabelValues("manufacture.part", "sum", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.handlerDuration))
}

func TestCollectorDedupAndTransitions(t *testing.T) {
	c := New(nil)
	c.ObserveDedup("default", true)
	c.ObserveDedup("default", false)
	c.ObserveDedup("default", false)
	c.ObserveTransition(part.StatusPackage, part.StatusCompleted)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.dedupTotal.WithLabelValues("default", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dedupTotal.WithLabelValues("default", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("package", "completed")))
}

func TestCollectorBreakerState(t *testing.T) {
	c := New(nil)
	c.BreakerStateChanged("stock", "closed", "open")
	assert.Equal(t, 2.0, testutil.ToFloat64(c.breakerState.WithLabelValues("stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerTrips.WithLabelValues("stock")))

	c.BreakerStateChanged("stock", "open", "half-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerState.WithLabelValues("stock")))
	c.BreakerStateChanged("stock", "half-open", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(c.breakerState.WithLabelValues("stock")))
}

func TestCollectorHandlerServesMetrics(t *testing.T) {
	c := New(nil)
	c.ObserveTransition(part.StatusOpen, part.StatusPackage)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "manufacture_part_transitions_total"))
}
