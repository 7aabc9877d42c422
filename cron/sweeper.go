package cron

import (
	"context"
	"time"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

// SweepJobName names the reconciliation sweep in logs and runner errors.
const SweepJobName = "manufacture_reconciliation_sweep"

// DefaultSettledWindow is how long a Completed batch keeps being re-announced
// after its last version was written.
const DefaultSettledWindow = 24 * time.Hour

// Sweeper re-announces every batch still in a reconcilable status so that
// handlers waiting on late collaborators (orders, stages) get another pass.
// Settled batches are only re-announced inside the settled window.
// Deduplication keeps redeliveries harmless.
type Sweeper struct {
	repo      store.Repository
	publisher transport.Publisher
	logger    logger.Logger
	statuses  []part.Status
	window    time.Duration
	now       func() time.Time
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(l logger.Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStatuses narrows the swept statuses.
func WithStatuses(statuses ...part.Status) SweeperOption {
	return func(s *Sweeper) {
		if len(statuses) > 0 {
			s.statuses = statuses
		}
	}
}

// WithSettledWindow bounds how long settled batches are re-announced.
func WithSettledWindow(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSweeper(repo store.Repository, publisher transport.Publisher, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Nop{},
		statuses:  part.ReconcilableStatuses(),
		window:    DefaultSettledWindow,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sweep publishes one PartMessage per reconcilable batch and returns how
// many were published. Publish failures are logged and the sweep goes on;
// the last one is returned.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	snapshots, err := s.candidates(ctx)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CategoryExternal, "sweep: list batches").
			WithTextCode(manufacture.ErrCodeDownstream)
	}

	var lastErr error
	published := 0
	for _, snap := range snapshots {
		if snap.Part == nil || snap.Event == nil {
			continue
		}
		msg := manufacture.NewPartMessage(snap.Part.ID, snap.Event.ID)
		if err := s.publisher.Publish(ctx, msg); err != nil {
			logger.With(s.logger, map[string]any{
				"part_id":  snap.Part.ID,
				"event_id": snap.Event.ID,
			}).Error("sweep publish failed: %v", err)
			lastErr = err
			continue
		}
		published++
	}

	s.logger.Info("sweep published %d of %d batches", published, len(snapshots))
	return published, lastErr
}

func (s *Sweeper) candidates(ctx context.Context) ([]part.Snapshot, error) {
	var active, settled []part.Status
	for _, st := range s.statuses {
		if part.IsSettled(st) {
			settled = append(settled, st)
		} else {
			active = append(active, st)
		}
	}

	var out []part.Snapshot
	if len(active) > 0 {
		snaps, err := s.repo.ListByStatus(ctx, active...)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	if len(settled) > 0 {
		since := s.now().UTC().Add(-s.window)
		snaps, err := s.repo.ListModifiedSince(ctx, since, settled...)
		if err != nil {
			return nil, err
		}
		out = append(out, snaps...)
	}
	return out, nil
}

// Job adapts Sweep to a scheduler job.
func (s *Sweeper) Job() Job {
	return func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}
}

// Schedule registers the sweep on scheduler under cfg.Expression.
func (s *Sweeper) Schedule(scheduler *Scheduler, cfg manufacture.HandlerConfig) (Handle, error) {
	return scheduler.ScheduleCron(SweepJobName, cfg, s.Job())
}
