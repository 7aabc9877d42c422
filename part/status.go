package part

import (
	"strings"

	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-manufacture"
)

// Status is the lifecycle state recorded on every event version.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPackage   Status = "package"
	StatusDefect    Status = "defect"
	StatusCompleted Status = "completed"
	StatusClosed    Status = "closed"
)

var statuses = []Status{StatusOpen, StatusPackage, StatusDefect, StatusCompleted, StatusClosed}

// transitions lists the statuses reachable by a command from each status.
// Self transitions record a new version without changing the status
// (another working stage, another defect).
var transitions = map[Status][]Status{
	StatusOpen:      {StatusOpen, StatusPackage, StatusClosed},
	StatusPackage:   {StatusPackage, StatusDefect, StatusCompleted, StatusClosed},
	StatusDefect:    {StatusPackage, StatusDefect, StatusCompleted, StatusClosed},
	StatusCompleted: {StatusClosed},
	StatusClosed:    {},
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// ParseStatus resolves a status name, case insensitive.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", errors.New("unknown manufacture part status", errors.CategoryValidation).
			WithTextCode(manufacture.ErrCodeValidation).
			WithMetadata(map[string]any{"status": value})
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status rejects product and status mutation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// In reports whether s is one of set.
func (s Status) In(set ...Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// CanTransition reports whether a command may move a batch from one status to another.
func CanTransition(from, to Status) bool {
	return to.In(transitions[from]...)
}

// TransitionObserver is notified after a new version changed the status.
type TransitionObserver interface {
	ObserveTransition(from, to Status)
}
