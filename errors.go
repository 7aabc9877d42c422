package manufacture

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodePartNotFound       = "PART_NOT_FOUND"
	ErrCodeEventNotFound      = "EVENT_NOT_FOUND"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeDefectExceedsTotal = "DEFECT_EXCEEDS_TOTAL"
	ErrCodeOpenPartExists     = "OPEN_PART_EXISTS"
	ErrCodeNoOpenPart         = "NO_OPEN_PART"
	ErrCodeDedupStore         = "DEDUP_STORE_FAILED"
	ErrCodeDownstream         = "DOWNSTREAM_FAILED"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
	ErrCodeLockNotObtained    = "LOCK_NOT_OBTAINED"
	ErrCodeHandlerPanic       = "HANDLER_PANIC"
)

var (
	ErrValidation = apperrors.New("validation error", apperrors.CategoryValidation).
			WithTextCode(ErrCodeValidation)
	ErrPartNotFound = apperrors.New("manufacture part not found", apperrors.CategoryNotFound).
			WithTextCode(ErrCodePartNotFound)
	ErrEventNotFound = apperrors.New("manufacture part event not found", apperrors.CategoryNotFound).
				WithTextCode(ErrCodeEventNotFound)
	ErrProductNotFound = apperrors.New("manufacture part product not found", apperrors.CategoryNotFound).
				WithTextCode(ErrCodeProductNotFound)
	ErrInvalidTransition = apperrors.New("invalid status transition", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidTransition)
	ErrDefectExceedsTotal = apperrors.New("defect exceeds product total", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeDefectExceedsTotal)
	ErrOpenPartExists = apperrors.New("an open manufacture part already exists", apperrors.CategoryConflict).
				WithTextCode(ErrCodeOpenPartExists)
	ErrNoOpenPart = apperrors.New("no open manufacture part", apperrors.CategoryNotFound).
			WithTextCode(ErrCodeNoOpenPart)
	ErrDedupStore = apperrors.New("deduplication store failure", apperrors.CategoryExternal).
			WithTextCode(ErrCodeDedupStore)
	ErrDownstream = apperrors.New("downstream handler failed", apperrors.CategoryExternal).
			WithTextCode(ErrCodeDownstream)
	ErrCircuitOpen = apperrors.New("circuit breaker is open", apperrors.CategoryExternal).
			WithTextCode(ErrCodeCircuitOpen)
	ErrLockNotObtained = apperrors.New("aggregate lock not obtained", apperrors.CategoryConflict).
				WithTextCode(ErrCodeLockNotObtained)
	ErrHandlerPanic = apperrors.New("handler panicked", apperrors.CategoryHandler).
			WithTextCode(ErrCodeHandlerPanic)
)

// NewError clones base, overriding the message and attaching source and metadata.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrValidation
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the first coded error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasCode reports whether err carries the given text code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}
