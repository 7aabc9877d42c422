package logger

import (
	"context"
	"io"

	"github.com/goliatone/go-logger/glog"
)

// GlogAdapter bridges a go-logger glog.Logger to Logger.
type GlogAdapter struct {
	logger glog.Logger
}

// NewGlog wraps an existing glog logger.
func NewGlog(l glog.Logger) Logger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return GlogAdapter{logger: l}
}

// NewJSON builds a JSON glog logger writing to out at the given level.
func NewJSON(out io.Writer, level string) Logger {
	if level == "" {
		level = "info"
	}
	if out == nil {
		return NewGlog(glog.NewLogger(
			glog.WithLoggerTypeJSON(),
			glog.WithLevel(level),
		))
	}
	return NewGlog(glog.NewLogger(
		glog.WithWriter(out),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	))
}

func (l GlogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l GlogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l GlogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l GlogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l GlogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l GlogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l GlogAdapter) WithContext(ctx context.Context) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithContext(ctx)
	}
	return GlogAdapter{logger: l.logger.WithContext(ctx)}
}

func (l GlogAdapter) WithFields(fields map[string]any) Logger {
	if l.logger == nil {
		return NewFmtLogger(nil).WithFields(fields)
	}
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return GlogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}
