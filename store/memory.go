package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/part"
)

// MemoryRepository keeps batches in memory. Values are cloned on the way
// in and out so callers never share state with the store.
type MemoryRepository struct {
	mu     sync.RWMutex
	parts  map[string]*part.Part
	events map[string]*part.Event
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		parts:  make(map[string]*part.Part),
		events: make(map[string]*part.Event),
	}
}

func (r *MemoryRepository) Part(_ context.Context, id string) (*part.Part, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[id]
	if !ok {
		return nil, notFoundPart(id)
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) CurrentEvent(_ context.Context, partID string) (*part.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parts[partID]
	if !ok {
		return nil, notFoundPart(partID)
	}
	e, ok := r.events[p.EventID]
	if !ok {
		return nil, notFoundEvent(p.EventID)
	}
	return copyEvent(e), nil
}

func (r *MemoryRepository) Event(_ context.Context, eventID string) (*part.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[eventID]
	if !ok {
		return nil, notFoundEvent(eventID)
	}
	return copyEvent(e), nil
}

func (r *MemoryRepository) Products(ctx context.Context, partID string) ([]part.Product, error) {
	e, err := r.CurrentEvent(ctx, partID)
	if err != nil {
		return nil, err
	}
	return e.SortedProducts(), nil
}

func (r *MemoryRepository) Create(_ context.Context, p *part.Part, e *part.Event) error {
	if p == nil || e == nil {
		return manufacture.NewError(manufacture.ErrValidation, "part and event are required", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parts[p.ID]; exists {
		return manufacture.NewError(manufacture.ErrOpenPartExists, "manufacture part already stored", nil, map[string]any{
			"part_id": p.ID,
		})
	}
	cp := *p
	cp.EventID = e.ID
	r.parts[p.ID] = &cp
	r.events[e.ID] = copyEvent(e)
	p.EventID = e.ID
	return nil
}

func (r *MemoryRepository) Save(_ context.Context, e *part.Event) error {
	if e == nil {
		return manufacture.NewError(manufacture.ErrValidation, "event is required", nil, nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parts[e.Main]
	if !ok {
		return notFoundPart(e.Main)
	}
	r.events[e.ID] = copyEvent(e)
	p.EventID = e.ID
	return nil
}

func (r *MemoryRepository) SetQuantity(_ context.Context, partID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parts[partID]
	if !ok {
		return notFoundPart(partID)
	}
	p.Quantity = quantity
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, partID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parts[partID]; !ok {
		return notFoundPart(partID)
	}
	delete(r.parts, partID)
	for id, e := range r.events {
		if e.Main == partID {
			delete(r.events, id)
		}
	}
	return nil
}

func (r *MemoryRepository) FindOpen(_ context.Context, profile, action string) (*part.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, snap := range r.snapshotsLocked() {
		e := snap.Event
		if e.Status == part.StatusOpen && e.Profile == profile && e.Action == action {
			return &snap, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListByStatus(_ context.Context, statuses ...part.Status) ([]part.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []part.Snapshot
	for _, snap := range r.snapshotsLocked() {
		if snap.Event.Status.In(statuses...) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListModifiedSince(_ context.Context, since time.Time, statuses ...part.Status) ([]part.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []part.Snapshot
	for _, snap := range r.snapshotsLocked() {
		if snap.Event.Status.In(statuses...) && !snap.Event.Modified.Before(since) {
			out = append(out, snap)
		}
	}
	return out, nil
}

// snapshotsLocked returns every batch ordered by creation time.
func (r *MemoryRepository) snapshotsLocked() []part.Snapshot {
	out := make([]part.Snapshot, 0, len(r.parts))
	for _, p := range r.parts {
		e, ok := r.events[p.EventID]
		if !ok {
			continue
		}
		cp := *p
		out = append(out, part.Snapshot{Part: &cp, Event: copyEvent(e)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Part.Created.Equal(out[j].Part.Created) {
			return out[i].Part.ID < out[j].Part.ID
		}
		return out[i].Part.Created.Before(out[j].Part.Created)
	})
	return out
}

func copyEvent(e *part.Event) *part.Event {
	return e.Copy()
}

func notFoundPart(id string) error {
	return manufacture.NewError(manufacture.ErrPartNotFound, "", nil, map[string]any{"part_id": id})
}

func notFoundEvent(id string) error {
	return manufacture.NewError(manufacture.ErrEventNotFound, "", nil, map[string]any{"event_id": id})
}
