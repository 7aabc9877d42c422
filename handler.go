package manufacture

import (
	"context"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Handler reacts to a message. The returned flag reports whether the
// handler considers the message handled; false means "nothing done" or a
// logged failure. Handlers never propagate errors to the bus.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) bool
}

// HandlerFunc is an adapter that lets you use a function as a Handler[T]
type HandlerFunc[T any] func(ctx context.Context, msg T) bool

// Handle calls the underlying function
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) bool {
	return f(ctx, msg)
}

// HandlerConfig carries execution settings for scheduled or subscribed handlers.
type HandlerConfig struct {
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	Deadline   time.Time     `json:"deadline" yaml:"deadline"`
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	MaxRuns    int           `json:"max_runs" yaml:"max_runs"`
	RunOnce    bool          `json:"run_once" yaml:"run_once"`
	Expression string        `json:"expression" yaml:"expression"`
	NoTimeout  bool          `json:"no_timeout" yaml:"no_timeout"`
}

// HandlerName returns a stable name for a handler value, used for dedup keys
// and log fields when the handler does not implement Name() string.
func HandlerName(h any) string {
	if h == nil {
		return "unknown_handler"
	}

	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}

	t := reflect.TypeOf(h)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := toSnakeCase(t.Name())
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}

	pkgPath := t.PkgPath()
	if pkgPath == "" {
		return name
	}
	parts := strings.Split(pkgPath, "/")
	return parts[len(parts)-1] + "::" + name
}

var snakeCaseRe = regexp.MustCompile("([a-z0-9])([A-Z])")

func toSnakeCase(s string) string {
	return strings.ToLower(snakeCaseRe.ReplaceAllString(s, "${1}_${2}"))
}
