package dedup

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

const (
	// DefaultNamespace scopes keys when no namespace was selected.
	DefaultNamespace = "default"

	keySeparator = "::"
)

// Store persists executed markers. Mark must be idempotent: marking an
// existing key is not an error.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// Observer is notified of every IsExecuted lookup.
type Observer interface {
	ObserveDedup(namespace string, executed bool)
}

// Deduplicator builds handles over a Store within one namespace.
// Namespace returns a scoped copy, so concerns sharing a Deduplicator
// never leak their namespace into each other.
type Deduplicator struct {
	store     Store
	namespace string
	retention time.Duration
	logger    logger.Logger
	observer  Observer
}

type Option func(*Deduplicator)

// WithNamespace sets the initial namespace.
func WithNamespace(name string) Option {
	return func(d *Deduplicator) {
		if name = strings.TrimSpace(name); name != "" {
			d.namespace = name
		}
	}
}

// WithRetention expires markers after ttl. Zero keeps them forever.
func WithRetention(ttl time.Duration) Option {
	return func(d *Deduplicator) {
		if ttl > 0 {
			d.retention = ttl
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(d *Deduplicator) {
		d.observer = o
	}
}

// New creates a Deduplicator over store. A nil store falls back to memory.
func New(store Store, opts ...Option) *Deduplicator {
	if store == nil {
		store = NewMemoryStore()
	}
	d := &Deduplicator{
		store:     store,
		namespace: DefaultNamespace,
		logger:    logger.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Namespace returns a copy of d scoped to name.
func (d *Deduplicator) Namespace(name string) *Deduplicator {
	cp := *d
	if name = strings.TrimSpace(name); name != "" {
		cp.namespace = name
	} else {
		cp.namespace = DefaultNamespace
	}
	return &cp
}

// CurrentNamespace returns the namespace handles are created in.
func (d *Deduplicator) CurrentNamespace() string { return d.namespace }

// Deduplication returns the handle for the composite key parts.
func (d *Deduplicator) Deduplication(parts ...string) *Handle {
	return &Handle{
		d:   d,
		key: Key(d.namespace, parts...),
	}
}

// Key joins a namespace and key parts into the stored key.
func Key(namespace string, parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, strings.TrimSpace(namespace))
	for _, p := range parts {
		clean = append(clean, strings.TrimSpace(p))
	}
	return strings.Join(clean, keySeparator)
}

// Handle is the execution marker of one (namespace, key parts) tuple.
type Handle struct {
	d   *Deduplicator
	key string
}

func (h *Handle) Key() string { return h.key }

// IsExecuted reports whether Save was already called for this key.
func (h *Handle) IsExecuted(ctx context.Context) (bool, error) {
	ok, err := h.d.store.Exists(ctx, h.key)
	if err != nil {
		return false, manufacture.NewError(manufacture.ErrDedupStore, "deduplication lookup failed", err, map[string]any{
			"key": h.key,
		})
	}
	if h.d.observer != nil {
		h.d.observer.ObserveDedup(h.d.namespace, ok)
	}
	if ok {
		h.d.logger.Debug("deduplication hit key=%s", h.key)
	}
	return ok, nil
}

// Save marks the key executed. Call only after the side effect succeeded.
func (h *Handle) Save(ctx context.Context) error {
	if err := h.d.store.Mark(ctx, h.key, h.d.retention); err != nil {
		return manufacture.NewError(manufacture.ErrDedupStore, "deduplication save failed", err, map[string]any{
			"key": h.key,
		})
	}
	return nil
}
