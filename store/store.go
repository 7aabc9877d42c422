package store

import (
	"context"
	"time"

	"github.com/goliatone/go-manufacture/part"
)

// Repository persists batches and their event versions. The batch row
// points at its current event; saving a new version repoints it with
// last-write-wins semantics.
type Repository interface {
	// Part loads a batch. Missing batches yield manufacture.ErrPartNotFound.
	Part(ctx context.Context, id string) (*part.Part, error)
	// CurrentEvent loads the event the batch currently points at.
	CurrentEvent(ctx context.Context, partID string) (*part.Event, error)
	// Event loads one event version by id.
	Event(ctx context.Context, eventID string) (*part.Event, error)
	// Products lists the lines of the batch's current event.
	Products(ctx context.Context, partID string) ([]part.Product, error)
	// Create stores a new batch with its first event.
	Create(ctx context.Context, p *part.Part, e *part.Event) error
	// Save stores e as a new version and makes it current for e.Main.
	Save(ctx context.Context, e *part.Event) error
	// SetQuantity overwrites the denormalized quantity.
	SetQuantity(ctx context.Context, partID string, quantity int) error
	// Delete removes the batch and its versions.
	Delete(ctx context.Context, partID string) error
	// FindOpen returns the Open batch of profile for action, nil when none.
	FindOpen(ctx context.Context, profile, action string) (*part.Snapshot, error)
	// ListByStatus returns the batches whose current event has one of statuses.
	ListByStatus(ctx context.Context, statuses ...part.Status) ([]part.Snapshot, error)
	// ListModifiedSince is ListByStatus restricted to batches whose current
	// event was written at or after since.
	ListModifiedSince(ctx context.Context, since time.Time, statuses ...part.Status) ([]part.Snapshot, error)
}
