package dispatcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/runner"
)

const tracerName = "github.com/goliatone/go-manufacture/dispatcher"

// Outcome classifies one handler execution.
type Outcome string

const (
	OutcomeHandled Outcome = "handled"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Observer receives one call per handler execution.
type Observer interface {
	ObserveHandler(msgType, handler string, outcome Outcome, elapsed time.Duration)
}

// Bus delivers a message to every handler registered for its type, in
// descending priority order. Handlers registered with the same priority run
// in registration order. A failing handler never stops the fan-out.
type Bus struct {
	mu       sync.RWMutex
	entries  map[string][]*entry
	seq      int
	locker   Locker
	logger   logger.Logger
	tracer   trace.Tracer
	observer Observer
	defaults []runner.Option
}

type entry struct {
	seq      int
	name     string
	priority int
	runner   *runner.Handler
	invoke   func(ctx context.Context, msg manufacture.Message) (bool, error)
}

// Option defines the functional option signature.
type Option func(*Bus)

// WithLocker sets the aggregate locker; nil disables locking.
func WithLocker(l Locker) Option {
	return func(b *Bus) {
		b.locker = l
	}
}

func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) {
		if t != nil {
			b.tracer = t
		}
	}
}

func WithObserver(o Observer) Option {
	return func(b *Bus) {
		b.observer = o
	}
}

// WithRunnerDefaults sets runner options applied to every subscription
// before its own options.
func WithRunnerDefaults(opts ...runner.Option) Option {
	return func(b *Bus) {
		b.defaults = append(b.defaults, opts...)
	}
}

// New creates a bus with an in-process aggregate locker.
func New(opts ...Option) *Bus {
	b := &Bus{
		entries: make(map[string][]*entry),
		locker:  NewKeyedLocker(),
		logger:  logger.Nop{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	name       string
	priority   int
	runnerOpts []runner.Option
}

// WithName overrides the handler name used in reports, logs and metrics.
func WithName(name string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.name = name
	}
}

// WithPriority sets the handler priority. Higher runs first.
func WithPriority(p int) SubscribeOption {
	return func(c *subscribeConfig) {
		c.priority = p
	}
}

// WithRunner appends runner options for this subscription.
func WithRunner(opts ...runner.Option) SubscribeOption {
	return func(c *subscribeConfig) {
		c.runnerOpts = append(c.runnerOpts, opts...)
	}
}

// Subscribe registers handler for messages of type T.
func Subscribe[T manufacture.Message](b *Bus, handler manufacture.Handler[T], opts ...SubscribeOption) Subscription {
	var msg T
	cfg := &subscribeConfig{name: manufacture.HandlerName(handler)}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	runnerOpts := append([]runner.Option{}, b.defaults...)
	runnerOpts = append(runnerOpts, runner.WithName(cfg.name), runner.WithLogger(b.logger))
	runnerOpts = append(runnerOpts, cfg.runnerOpts...)
	h := runner.NewHandler(runnerOpts...)

	e := &entry{
		name:     cfg.name,
		priority: cfg.priority,
		runner:   h,
		invoke: func(ctx context.Context, m manufacture.Message) (bool, error) {
			typed, ok := m.(T)
			if !ok {
				return false, manufacture.NewError(manufacture.ErrValidation,
					fmt.Sprintf("handler %s expects %T, got %T", cfg.name, msg, m), nil, nil)
			}
			return runner.RunHandler[T](ctx, h, handler, typed)
		},
	}

	b.register(msg.Type(), e)

	return &subs{bus: b, msgType: msg.Type(), entry: e}
}

// SubscribeFunc registers a function handler for messages of type T.
func SubscribeFunc[T manufacture.Message](b *Bus, fn manufacture.HandlerFunc[T], opts ...SubscribeOption) Subscription {
	return Subscribe[T](b, fn, opts...)
}

func (b *Bus) register(msgType string, e *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	e.seq = b.seq
	list := append(b.entries[msgType], e)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	b.entries[msgType] = list
}

// Handlers returns the registered handler names for msgType in execution order.
func (b *Bus) Handlers(msgType string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.entries[msgType]))
	for _, e := range b.entries[msgType] {
		out = append(out, e.name)
	}
	return out
}

func (b *Bus) snapshot(msgType string) []*entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.entries[msgType]
	out := make([]*entry, len(entries))
	copy(out, entries)
	return out
}

// Dispatch validates msg and runs every handler registered for its type.
// Messages implementing Aggregated are serialized per aggregate key for the
// whole fan-out. The returned error covers bus-level failures only; handler
// failures are collected in the Report.
func (b *Bus) Dispatch(ctx context.Context, msg manufacture.Message) (Report, error) {
	if err := manufacture.ValidateMessage(msg); err != nil {
		return Report{}, err
	}

	report := Report{MessageType: msg.Type()}

	entries := b.snapshot(msg.Type())
	if len(entries) == 0 {
		err := fmt.Errorf("no handlers for message type %s", msg.Type())
		return report, apperrors.Wrap(err, apperrors.CategoryHandler, "dispatch failed")
	}

	if ctx.Err() != nil {
		return report, apperrors.Wrap(ctx.Err(), apperrors.CategoryInternal, "context canceled or deadline exceeded")
	}

	if agg, ok := msg.(manufacture.Aggregated); ok && b.locker != nil {
		report.AggregateKey = agg.AggregateKey()
		unlock, err := b.locker.Lock(ctx, report.AggregateKey)
		if err != nil {
			return report, err
		}
		defer unlock()
	}

	lgr := logger.With(b.logger.WithContext(ctx), map[string]any{
		"message_type":  msg.Type(),
		"aggregate_key": report.AggregateKey,
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, apperrors.Wrap(err, apperrors.CategoryInternal, "dispatch interrupted")
		}
		res := b.run(ctx, e, msg)
		if res.Err != nil {
			lgr.Error("handler %s failed: %v", e.name, res.Err)
		} else {
			lgr.Debug("handler %s %s in %s", e.name, res.Outcome(), res.Elapsed)
		}
		report.Handlers = append(report.Handlers, res)
	}

	return report, nil
}

func (b *Bus) run(ctx context.Context, e *entry, msg manufacture.Message) HandlerResult {
	ctx, span := b.tracer.Start(ctx, "manufacture.handle "+e.name,
		trace.WithAttributes(
			attribute.String("manufacture.message_type", msg.Type()),
			attribute.String("manufacture.handler", e.name),
			attribute.Int("manufacture.priority", e.priority),
		),
	)
	defer span.End()

	start := time.Now()
	handled, err := e.invoke(ctx, msg)
	res := HandlerResult{
		Handler:  e.name,
		Priority: e.priority,
		Handled:  handled,
		Err:      err,
		Elapsed:  time.Since(start),
	}

	span.SetAttributes(attribute.Bool("manufacture.handled", handled))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if b.observer != nil {
		b.observer.ObserveHandler(msg.Type(), e.name, res.Outcome(), res.Elapsed)
	}
	return res
}

// HandlerResult is the outcome of one handler within a dispatch.
type HandlerResult struct {
	Handler  string
	Priority int
	Handled  bool
	Err      error
	Elapsed  time.Duration
}

func (r HandlerResult) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeFailed
	case r.Handled:
		return OutcomeHandled
	default:
		return OutcomeSkipped
	}
}

// Report lists per-handler results of one dispatch in execution order.
type Report struct {
	MessageType  string
	AggregateKey string
	Handlers     []HandlerResult
}

// Err joins every handler failure, nil when all handlers ran cleanly.
func (r Report) Err() error {
	var errs error
	for _, h := range r.Handlers {
		if h.Err != nil {
			errs = stderrors.Join(errs, h.Err)
		}
	}
	return errs
}

// Handled reports whether the named handler ran and returned true.
func (r Report) Handled(name string) bool {
	for _, h := range r.Handlers {
		if h.Handler == name {
			return h.Handled
		}
	}
	return false
}

// Order returns the handler names in execution order.
func (r Report) Order() []string {
	out := make([]string, 0, len(r.Handlers))
	for _, h := range r.Handlers {
		out = append(out, h.Handler)
	}
	return out
}
