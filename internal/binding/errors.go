package binding

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is matched (errors.Is) by bind errors caused by a
// missing or invalid argument.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrorCode categorizes binding errors.
type ErrorCode string

const (
	// CodeMissingUnit indicates Bind was called without a computation unit.
	// Fatal to the bind call, never retried.
	CodeMissingUnit ErrorCode = "MISSING_UNIT"

	// CodeInconsistent indicates the parallel arrays of a Definition diverged.
	// This is a programming error: Bind never produces it.
	CodeInconsistent ErrorCode = "INCONSISTENT_SNAPSHOT"
)

// Error is returned by Bind, Validate, and UpdateCounter.
type Error struct {
	Code    ErrorCode
	Message string

	// UnitID identifies the owning unit, when known.
	UnitID string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.UnitID != "" {
		return fmt.Sprintf("%s: %s (unit=%s)", e.Code, e.Message, e.UnitID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrInvalidArgument) match missing-unit errors.
func (e *Error) Is(target error) bool {
	return target == ErrInvalidArgument && e.Code == CodeMissingUnit
}

// IsMissingUnit returns true if err is a missing-unit bind error.
// Uses errors.As to handle wrapped errors.
func IsMissingUnit(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == CodeMissingUnit
	}
	return false
}

// IsInconsistent returns true if err reports an invariant violation.
func IsInconsistent(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == CodeInconsistent
	}
	return false
}

func inconsistent(unitID, format string, args ...any) *Error {
	return &Error{
		Code:    CodeInconsistent,
		Message: fmt.Sprintf(format, args...),
		UnitID:  unitID,
	}
}
