package manufacture

import (
	"strings"

	"github.com/google/uuid"
)

// Result is the outcome of a command or collaborator call: either the
// produced entity or an opaque correlation id identifying the failure.
// Callers inspect ErrorID for log and flash-message correlation.
type Result[T any] struct {
	value   T
	errorID string
	err     error
	ok      bool
}

// OK wraps a successful value.
func OK[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Fail records err under a freshly generated correlation id.
func Fail[T any](err error) Result[T] {
	return FailWithID[T](NewErrorID(), err)
}

// FailWithID records err under the provided correlation id.
func FailWithID[T any](id string, err error) Result[T] {
	if id == "" {
		id = NewErrorID()
	}
	return Result[T]{errorID: id, err: err}
}

// IsOK reports whether the result holds a value.
func (r Result[T]) IsOK() bool { return r.ok }

// Value returns the stored value and whether it is present.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// ErrorID returns the correlation id, empty on success.
func (r Result[T]) ErrorID() string { return r.errorID }

// Err returns the underlying failure, nil on success.
func (r Result[T]) Err() error { return r.err }

func (r Result[T]) String() string {
	if r.ok {
		return "ok"
	}
	return r.errorID
}

// NewErrorID returns a short opaque token.
func NewErrorID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
