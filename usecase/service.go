// Package usecase holds the batch commands. Every command clones the
// current event, mutates the clone, stores it as the new current version
// and announces it with a PartMessage.
package usecase

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/part"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

type Service struct {
	repo      store.Repository
	publisher transport.Publisher
	logger    logger.Logger
	observer  part.TransitionObserver
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTransitionObserver reports every status change made by a command.
func WithTransitionObserver(o part.TransitionObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo store.Repository, publisher transport.Publisher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.Nop{},
		validate:  newValidator(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// New creates a batch in Open status. A profile keeps at most one open
// batch per action.
func (s *Service) New(ctx context.Context, cmd NewCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "new", err)
	}
	complete, err := part.ParseComplete(cmd.Complete)
	if err != nil {
		return s.fail(ctx, "new", err)
	}
	open, err := s.repo.FindOpen(ctx, cmd.Profile, cmd.Action)
	if err != nil {
		return s.fail(ctx, "new", err)
	}
	if open != nil {
		return s.fail(ctx, "new", manufacture.NewError(manufacture.ErrOpenPartExists, "", nil, map[string]any{
			"profile": cmd.Profile,
			"action":  cmd.Action,
			"part_id": open.Part.ID,
		}))
	}

	p := part.New(s.now())
	e := part.NewEvent(p.ID, cmd.Action, cmd.Profile, complete)
	e.Fixed = cmd.Fixed
	e.Comment = cmd.Comment
	if err := s.repo.Create(ctx, p, e); err != nil {
		return s.fail(ctx, "new", err)
	}
	s.publish(ctx, manufacture.NewPartMessage(p.ID, e.ID))
	return manufacture.OK(p)
}

// Edit updates the descriptive fields without changing the status.
func (s *Service) Edit(ctx context.Context, cmd EditCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "edit", err)
	}
	complete, err := part.ParseComplete(cmd.Complete)
	if err != nil {
		return s.fail(ctx, "edit", err)
	}
	return s.mutate(ctx, "edit", cmd.Event, func(e *part.Event) error {
		if err := e.Transition(e.Status); err != nil {
			return err
		}
		e.Action = cmd.Action
		e.Complete = complete
		e.Fixed = cmd.Fixed
		e.Comment = cmd.Comment
		return nil
	})
}

// AddProduct appends units to the open batch of the profile for action.
func (s *Service) AddProduct(ctx context.Context, cmd AddProductCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "add_product", err)
	}
	open, err := s.repo.FindOpen(ctx, cmd.Profile, cmd.Action)
	if err != nil {
		return s.fail(ctx, "add_product", err)
	}
	if open == nil || !part.AcceptsProducts(open.Event) {
		return s.fail(ctx, "add_product", manufacture.NewError(manufacture.ErrNoOpenPart, "", nil, map[string]any{
			"profile": cmd.Profile,
			"action":  cmd.Action,
		}))
	}

	next := open.Event.Clone()
	next.AddProduct(cmd.SKU(), cmd.Total)
	p, err := s.commit(ctx, open.Event, next)
	if err != nil {
		return s.fail(ctx, "add_product", err)
	}
	if cmd.Invariable != "" {
		s.publish(ctx, manufacture.ProductMessage{Invariable: cmd.Invariable, Manufacture: p.ID, Kind: cmd.Kind})
	}
	return manufacture.OK(p)
}

// Action records a finished working stage and the employee who did it.
func (s *Service) Action(ctx context.Context, cmd ActionCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "action", err)
	}
	return s.mutate(ctx, "action", cmd.Event, func(e *part.Event) error {
		if err := e.Transition(part.StatusPackage); err != nil {
			return err
		}
		e.AssignWorking(&part.Working{Stage: cmd.Stage, Profile: cmd.Profile})
		return nil
	})
}

// Package hands the batch over to production.
func (s *Service) Package(ctx context.Context, cmd PackageCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "package", err)
	}
	return s.mutate(ctx, "package", cmd.Event, func(e *part.Event) error {
		if e.Status != part.StatusOpen {
			return manufacture.NewError(manufacture.ErrInvalidTransition, "", nil, map[string]any{
				"event_id": e.ID,
				"from":     string(e.Status),
				"to":       string(part.StatusPackage),
			})
		}
		if len(e.Products) == 0 {
			return manufacture.NewError(manufacture.ErrValidation, "cannot package a batch without products", nil, map[string]any{
				"part_id": e.Main,
			})
		}
		e.ResetWorking()
		return e.Transition(part.StatusPackage)
	})
}

// Defect nets defective units out of a line. A line left without units is
// removed; the published message carries the defective total.
func (s *Service) Defect(ctx context.Context, cmd DefectCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "defect", err)
	}
	current, err := s.repo.CurrentEvent(ctx, cmd.Part)
	if err != nil {
		return s.fail(ctx, "defect", err)
	}

	next := current.Clone()
	prod, ok := next.Product(cmd.Product)
	if !ok {
		return s.fail(ctx, "defect", manufacture.NewError(manufacture.ErrProductNotFound, "", nil, map[string]any{
			"part_id":    cmd.Part,
			"product_id": cmd.Product,
		}))
	}
	if err := prod.ApplyDefect(cmd.Total); err != nil {
		return s.fail(ctx, "defect", err)
	}
	next.RemoveEmpty()

	if cmd.Event != "" {
		blamed, err := s.repo.Event(ctx, cmd.Event)
		if err != nil {
			return s.fail(ctx, "defect", err)
		}
		next.AssignWorking(blamed.Working)
	} else {
		next.ResetWorking()
	}
	if err := next.Transition(part.StatusDefect); err != nil {
		return s.fail(ctx, "defect", err)
	}

	p, err := s.store(ctx, current, next)
	if err != nil {
		return s.fail(ctx, "defect", err)
	}
	s.publish(ctx, manufacture.NewPartMessage(p.ID, next.ID).WithTotal(cmd.Total))
	return manufacture.OK(p)
}

// Complete marks the batch Completed regardless of remaining stages.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "complete", err)
	}
	return s.mutate(ctx, "complete", cmd.Event, func(e *part.Event) error {
		return e.Transition(part.StatusCompleted)
	})
}

// Close ends the batch and releases its product locks.
func (s *Service) Close(ctx context.Context, cmd CloseCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "close", err)
	}
	res := s.mutate(ctx, "close", cmd.Event, func(e *part.Event) error {
		return e.Transition(part.StatusClosed)
	})
	if p, ok := res.Value(); ok {
		s.publish(ctx, manufacture.ProductMessage{Manufacture: p.ID})
	}
	return res
}

// Delete removes the batch and releases its product locks.
func (s *Service) Delete(ctx context.Context, cmd DeleteCommand) manufacture.Result[*part.Part] {
	if err := validate(s.validate, cmd); err != nil {
		return s.fail(ctx, "delete", err)
	}
	p, err := s.repo.Part(ctx, cmd.Part)
	if err != nil {
		return s.fail(ctx, "delete", err)
	}
	if err := s.repo.Delete(ctx, cmd.Part); err != nil {
		return s.fail(ctx, "delete", err)
	}
	s.publish(ctx, manufacture.ProductMessage{Manufacture: p.ID})
	return manufacture.OK(p)
}

// mutate applies fn to a clone of the current version of the batch owning
// eventID and commits it.
func (s *Service) mutate(ctx context.Context, op, eventID string, fn func(*part.Event) error) manufacture.Result[*part.Part] {
	ref, err := s.repo.Event(ctx, eventID)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	current, err := s.repo.CurrentEvent(ctx, ref.Main)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return s.fail(ctx, op, err)
	}
	p, err := s.commit(ctx, current, next)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	return manufacture.OK(p)
}

// commit stores next and publishes the plain PartMessage for it.
func (s *Service) commit(ctx context.Context, prev, next *part.Event) (*part.Part, error) {
	p, err := s.store(ctx, prev, next)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, manufacture.NewPartMessage(p.ID, next.ID))
	return p, nil
}

func (s *Service) store(ctx context.Context, prev, next *part.Event) (*part.Part, error) {
	if err := s.repo.Save(ctx, next); err != nil {
		return nil, err
	}
	if s.observer != nil && prev.Status != next.Status {
		s.observer.ObserveTransition(prev.Status, next.Status)
	}
	return s.repo.Part(ctx, next.Main)
}

// publish is best effort: a lost message is recovered by the sweeper.
func (s *Service) publish(ctx context.Context, msg manufacture.Message) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		logger.Critical(s.logger.WithContext(ctx), "publishing %s failed: %v", msg.Type(), err)
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) manufacture.Result[*part.Part] {
	res := manufacture.Fail[*part.Part](err)
	logger.With(s.logger.WithContext(ctx), map[string]any{
		"command":  op,
		"error_id": res.ErrorID(),
		"code":     manufacture.ErrorCode(err),
	}).Error("%s: %v", res.ErrorID(), err)
	return res
}
