// Package cron schedules recurring jobs on robfig/cron. Every run goes
// through a runner.Handler, so jobs get the same retry, timeout and panic
// handling as bus handlers.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/runner"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a robfig cron instance with cancelable handles.
type Scheduler struct {
	mu           sync.Mutex
	cron         *rcron.Cron
	location     *time.Location
	parser       Parser
	logger       logger.Logger
	logLevel     LogLevel
	errorHandler func(error)

	ctx    context.Context
	cancel context.CancelFunc

	nextHandleID int64
	handles      map[int64]*handle
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		location: time.Local,
		parser:   DefaultParser,
		logger:   logger.Nop{},
		logLevel: LogLevelError,
		handles:  make(map[int64]*handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			s.logger.Error("scheduled job failed: %v", err)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = rcron.New(s.build()...)
	return s
}

// ScheduleCron runs job on every tick of cfg.Expression.
func (s *Scheduler) ScheduleCron(name string, cfg manufacture.HandlerConfig, job Job) (Handle, error) {
	if cfg.Expression == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}
	if job == nil {
		return nil, fmt.Errorf("job %s cannot be nil", name)
	}
	run := s.runnable(name, cfg, job)

	h := s.newHandle()
	entryID, err := s.cron.AddFunc(cfg.Expression, func() {
		if h.Status().terminal() {
			return
		}
		h.setStatus(ScheduleStatusRunning, nil)
		if err := run(); err != nil {
			h.setStatus(ScheduleStatusFailed, err)
			return
		}
		if !h.Status().terminal() {
			h.setStatus(ScheduleStatusIdle, nil)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add job %s: %w", name, err)
	}
	h.entryID = entryID
	s.storeHandle(h)
	return h, nil
}

// ScheduleAfter runs job once after delay.
func (s *Scheduler) ScheduleAfter(name string, delay time.Duration, cfg manufacture.HandlerConfig, job Job) (Handle, error) {
	if delay < 0 {
		delay = 0
	}
	return s.ScheduleAt(name, time.Now().Add(delay), cfg, job)
}

// ScheduleAt runs job once at the given time.
func (s *Scheduler) ScheduleAt(name string, at time.Time, cfg manufacture.HandlerConfig, job Job) (Handle, error) {
	if job == nil {
		return nil, fmt.Errorf("job %s cannot be nil", name)
	}
	run := s.runnable(name, cfg, job)

	h := s.newHandle()
	s.storeHandle(h)

	go func() {
		timer := time.NewTimer(time.Until(at))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.Done():
			return
		}
		if h.Status().terminal() {
			return
		}
		h.setStatus(ScheduleStatusRunning, nil)
		err := run()
		s.removeStoredHandle(h.id)
		if err != nil {
			h.setTerminal(ScheduleStatusFailed, err)
			return
		}
		h.setTerminal(ScheduleStatusCompleted, nil)
	}()

	return h, nil
}

func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop halts the cron loop, cancels running jobs and marks every live
// handle stopped. It waits for running cron jobs to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.cron.Stop()

	s.mu.Lock()
	handles := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handles = make(map[int64]*handle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.entryID > 0 {
			s.cron.Remove(h.entryID)
		}
		if !h.Status().terminal() {
			h.setTerminal(ScheduleStatusStopped, nil)
		}
	}

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runnable(name string, cfg manufacture.HandlerConfig, job Job) func() error {
	opts := runner.FromConfig(name, cfg)
	opts = append(opts,
		runner.WithLogger(s.logger),
		runner.WithErrorHandler(s.errorHandler),
	)
	h := runner.NewHandler(opts...)
	return func() error {
		return h.Run(s.ctx, job)
	}
}

func (s *Scheduler) removeHandle(id int64) {
	h := s.removeStoredHandle(id)
	if h != nil && h.entryID > 0 {
		s.cron.Remove(h.entryID)
	}
}

func (s *Scheduler) removeStoredHandle(id int64) *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.handles[id]
	delete(s.handles, id)
	return h
}

func (s *Scheduler) storeHandle(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[h.id] = h
}

func (s *Scheduler) newHandle() *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandleID++
	return &handle{
		scheduler: s,
		id:        s.nextHandleID,
		status:    ScheduleStatusScheduled,
		done:      make(chan struct{}),
	}
}

// Len returns the number of live handles.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler) build() []rcron.Option {
	var opts []rcron.Option
	if s.location != nil {
		opts = append(opts, rcron.WithLocation(s.location))
	}

	switch s.parser {
	case StandardParser:
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	case SecondsParser:
		opts = append(opts, rcron.WithParser(rcron.NewParser(
			rcron.Second|rcron.Minute|rcron.Hour|rcron.Dom|rcron.Month|rcron.Dow|rcron.Descriptor,
		)))
	}

	cronLogger := &loggerAdapter{logger: s.logger, level: s.logLevel}
	opts = append(opts,
		rcron.WithLogger(cronLogger),
		rcron.WithChain(rcron.Recover(cronLogger), rcron.SkipIfStillRunning(cronLogger)),
	)
	return opts
}
