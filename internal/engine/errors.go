package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while managing use-sites.
//
// Runtime errors include:
//   - Compile failure: the compiler rejected an effect
//   - Bind failure: a compiled program could not be bound
//   - Duplicate effect: an effect name was registered twice
//   - Invalid effect: permutation keys are not a subset of the read keys
//   - Journal failure: a binding or frame event could not be persisted
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Effect names the affected effect, if any.
	Effect string

	// Unit identifies the affected compiled unit, if any.
	Unit string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeCompileFailed   RuntimeErrorCode = "COMPILE_FAILED"
	ErrCodeBindFailed      RuntimeErrorCode = "BIND_FAILED"
	ErrCodeDuplicateEffect RuntimeErrorCode = "DUPLICATE_EFFECT"
	ErrCodeInvalidEffect   RuntimeErrorCode = "INVALID_EFFECT"
	ErrCodeJournalFailed   RuntimeErrorCode = "JOURNAL_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Effect != "" && e.Unit != "":
		msg = fmt.Sprintf("%s (effect=%s, unit=%s)", msg, e.Effect, e.Unit)
	case e.Effect != "":
		msg = fmt.Sprintf("%s (effect=%s)", msg, e.Effect)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsCompileError returns true if the error is a compile failure.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	return hasCode(err, ErrCodeCompileFailed)
}

// IsDuplicateError returns true if an effect name was registered twice.
func IsDuplicateError(err error) bool {
	return hasCode(err, ErrCodeDuplicateEffect)
}

// IsInvalidEffectError returns true if an effect failed registration checks.
func IsInvalidEffectError(err error) bool {
	return hasCode(err, ErrCodeInvalidEffect)
}

// IsJournalError returns true if persisting to the journal failed.
func IsJournalError(err error) bool {
	return hasCode(err, ErrCodeJournalFailed)
}
