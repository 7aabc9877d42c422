package runner

import (
	"time"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/logger"
)

type Option func(*Handler)

// WithName sets the handler name reported in panic errors and logs.
func WithName(name string) Option {
	return func(r *Handler) {
		r.name = name
	}
}

func WithTimeout(t time.Duration) Option {
	return func(r *Handler) {
		r.timeout = t
	}
}

// WithNoTimeout clears any timeout configured before it.
func WithNoTimeout() Option {
	return func(r *Handler) {
		r.timeout = 0
	}
}

func WithDeadline(d time.Time) Option {
	return func(r *Handler) {
		r.deadline = d
	}
}

func WithRunOnce(once bool) Option {
	return func(r *Handler) {
		r.once = once
	}
}

func WithMaxRetries(max int) Option {
	return func(r *Handler) {
		r.maxRetries = max
	}
}

func WithMaxRuns(max int) Option {
	return func(r *Handler) {
		r.maxRuns = max
	}
}

func WithErrorHandler(h func(error)) Option {
	return func(r *Handler) {
		if h == nil {
			h = func(error) {}
		}
		r.errorHandler = h
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Handler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithDoneHandler(d func(*Handler)) Option {
	return func(r *Handler) {
		if d == nil {
			d = func(*Handler) {}
		}
		r.doneHandler = d
	}
}

// WithRetryStrategy lets you define a custom retry/backoff approach
func WithRetryStrategy(s RetryStrategy) Option {
	return func(r *Handler) {
		r.retryStrategy = s
	}
}

// FromConfig maps a HandlerConfig onto runner options.
func FromConfig(name string, cfg manufacture.HandlerConfig) []Option {
	opts := []Option{
		WithName(name),
		WithMaxRetries(cfg.MaxRetries),
		WithDeadline(cfg.Deadline),
		WithRunOnce(cfg.RunOnce),
	}
	if cfg.NoTimeout {
		opts = append(opts, WithNoTimeout())
	} else if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRuns > 0 {
		opts = append(opts, WithMaxRuns(cfg.MaxRuns))
	}
	return opts
}
