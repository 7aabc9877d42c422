package transport

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dispatcher"
)

// DefaultDrainLimit bounds a single Drain so a publish loop cannot spin forever.
const DefaultDrainLimit = 10000

// MemoryQueue is a FIFO transport for tests and in-process pipelines.
type MemoryQueue struct {
	mu        sync.Mutex
	pending   []manufacture.Message
	published []manufacture.Message
	limit     int
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{limit: DefaultDrainLimit}
}

func (q *MemoryQueue) Publish(ctx context.Context, msg manufacture.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := manufacture.ValidateMessage(msg); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
	q.published = append(q.published, msg)
	return nil
}

// Len returns the number of undelivered messages.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Published returns every message ever published, delivered or not.
func (q *MemoryQueue) Published() []manufacture.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]manufacture.Message(nil), q.published...)
}

func (q *MemoryQueue) pop() (manufacture.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return msg, true
}

// Drain dispatches queued messages, including those published while
// draining, until the queue is empty. Bus errors are joined and returned
// after the queue is drained.
func (q *MemoryQueue) Drain(ctx context.Context, bus Dispatcher) ([]dispatcher.Report, error) {
	var (
		reports []dispatcher.Report
		errs    error
	)
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return reports, stderrors.Join(errs, err)
		}
		if i >= q.limit {
			return reports, stderrors.Join(errs, manufacture.NewError(manufacture.ErrDownstream, "drain limit reached", nil, map[string]any{
				"limit": q.limit,
			}))
		}
		msg, ok := q.pop()
		if !ok {
			return reports, errs
		}
		report, err := bus.Dispatch(ctx, msg)
		if err != nil {
			errs = stderrors.Join(errs, err)
			continue
		}
		reports = append(reports, report)
	}
}
