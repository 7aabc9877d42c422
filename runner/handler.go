package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

// Handler runs a unit of work with retries, timeouts and panic isolation.
// A single Handler is shared by every execution of a subscription.
type Handler struct {
	mu sync.Mutex

	name          string
	logger        logger.Logger
	errorHandler  func(error)
	doneHandler   func(r *Handler)
	retryStrategy RetryStrategy

	EntryID        int
	runs           int
	successfulRuns int

	maxRuns    int
	maxRetries int
	timeout    time.Duration
	deadline   time.Time
	once       bool
}

// NewHandler constructs a Handler from options, applying defaults if unset.
func NewHandler(opts ...Option) *Handler {
	r := &Handler{
		name:          "handler",
		logger:        logger.Nop{},
		retryStrategy: DefaultRetryStrategy(),
	}
	r.errorHandler = func(err error) {
		r.logger.Error("runner error: %v", err)
	}
	r.doneHandler = func(h *Handler) {
		h.logger.Debug("runner %s done after %d runs", h.name, h.successfulRuns)
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

func (h *Handler) Name() string { return h.name }

// Exhausted reports whether the handler reached its run limits.
func (h *Handler) Exhausted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exhaustedLocked()
}

func (h *Handler) exhaustedLocked() bool {
	if h.once && h.successfulRuns >= 1 {
		return true
	}
	return h.maxRuns > 0 && h.successfulRuns >= h.maxRuns
}

// Run executes fn, retrying failed attempts per the retry strategy.
// Panics are recovered and reported as ErrHandlerPanic errors. The final
// error is returned and reported to the error handler.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) error {
	h.mu.Lock()
	if h.exhaustedLocked() {
		h.mu.Unlock()
		return nil
	}
	maxRetries := h.maxRetries
	strategy := h.retryStrategy
	h.mu.Unlock()

	ctx, cancel := h.contextWithSettings(ctx)
	defer cancel()

	var err error
	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attempts++
		err = h.attempt(ctx, fn)
		if err == nil {
			break
		}

		if attempt >= maxRetries {
			break
		}

		decision := DecideRetry(strategy, attempt, err)
		if !decision.ShouldRetry {
			break
		}

		h.logger.Warn("%s failed, attempt %d of %d: %v", h.name, attempt+1, maxRetries+1, err)

		if decision.Delay > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				attempt = maxRetries
			case <-time.After(decision.Delay):
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.runs++

	if err == nil {
		h.successfulRuns++
	} else {
		err = h.wrap(err, attempts)
		h.errorHandler(err)
	}

	if h.maxRuns > 0 && h.successfulRuns >= h.maxRuns {
		h.doneHandler(h)
	}

	return err
}

func (h *Handler) attempt(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = manufacture.PanicError(h.name, r, manufacture.CaptureStack())
		}
	}()
	return fn(ctx)
}

func (h *Handler) wrap(err error, attempts int) error {
	msg := fmt.Sprintf("%s failed after %d attempts", h.name, attempts)
	if apperrors.IsWrapped(err) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CategoryHandler, msg).
		WithMetadata(map[string]any{"handler": h.name, "attempts": attempts})
}

// Runs returns the number of completed runs and how many succeeded.
func (h *Handler) Runs() (runs, successful int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs, h.successfulRuns
}

func (h *Handler) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	switch {
	case h.timeout != 0 && !h.deadline.IsZero():
		ctx, cancelTimeout := context.WithTimeout(parent, h.timeout)
		ctxDeadline, cancelDeadline := context.WithDeadline(ctx, h.deadline)
		return ctxDeadline, func() {
			cancelDeadline()
			cancelTimeout()
		}
	case h.timeout != 0:
		return context.WithTimeout(parent, h.timeout)
	case !h.deadline.IsZero():
		return context.WithDeadline(parent, h.deadline)
	default:
		return parent, func() {}
	}
}

// RunHandler executes a message handler through h. The returned flag is the
// handler's own result; it is false whenever the run failed.
func RunHandler[T any](ctx context.Context, h *Handler, handler manufacture.Handler[T], msg T) (bool, error) {
	var handled bool
	err := h.Run(ctx, func(ctx context.Context) error {
		handled = handler.Handle(ctx, msg)
		return nil
	})
	if err != nil {
		return false, err
	}
	return handled, nil
}
