// Package apperr defines the typed errors returned by the barrel engine.
//
// Every error carries a Kind (the taxonomy the HTTP boundary maps to a status)
// and a stable machine-readable Code. errors.Is matches on Code, so callers can
// compare against the package-level sentinels even after WithMessage.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the calling layer.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindInternal      Kind = "internal"
)

// Error is a stable, machine-readable engine error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: msg}
}

// WithMessagef returns a copy of e carrying a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	// Validation
	ErrInvalidCode        = &Error{Kind: KindValidation, Code: "E_INVALID_CODE"}
	ErrInvalidCapacity    = &Error{Kind: KindValidation, Code: "E_INVALID_CAPACITY"}
	ErrOutOfBounds        = &Error{Kind: KindValidation, Code: "E_OUT_OF_BOUNDS"}
	ErrInvalidDates       = &Error{Kind: KindValidation, Code: "E_INVALID_DATES"}
	ErrInvalidField       = &Error{Kind: KindValidation, Code: "E_INVALID_FIELD"}
	ErrMissingLumbPercent = &Error{Kind: KindValidation, Code: "E_MISSING_LUMB_PERCENT"}
	ErrMissingReason      = &Error{Kind: KindValidation, Code: "E_MISSING_REASON"}
	ErrInvalidTarget      = &Error{Kind: KindValidation, Code: "E_INVALID_TARGET"}

	// Conflict
	ErrDuplicateCode      = &Error{Kind: KindConflict, Code: "E_DUPLICATE_CODE"}
	ErrActiveReportExists = &Error{Kind: KindConflict, Code: "E_ACTIVE_REPORT_EXISTS"}
	ErrStaleState         = &Error{Kind: KindConflict, Code: "E_STALE_STATE"}
	ErrAuditChainBroken   = &Error{Kind: KindConflict, Code: "E_AUDIT_CHAIN_BROKEN"}

	// State
	ErrInvalidTransition = &Error{Kind: KindState, Code: "E_INVALID_TRANSITION"}
	ErrNotOpen           = &Error{Kind: KindState, Code: "E_NOT_OPEN"}
	ErrRepairNotApproved = &Error{Kind: KindState, Code: "E_REPAIR_NOT_APPROVED"}
	ErrNotAssigned       = &Error{Kind: KindState, Code: "E_NOT_ASSIGNED"}
	ErrNotInProgress     = &Error{Kind: KindState, Code: "E_NOT_IN_PROGRESS"}
	ErrNotCompleted      = &Error{Kind: KindState, Code: "E_NOT_COMPLETED"}

	// NotFound
	ErrNotFound = &Error{Kind: KindNotFound, Code: "E_NOT_FOUND"}

	// Authorization
	ErrForbidden    = &Error{Kind: KindAuthorization, Code: "E_FORBIDDEN"}
	ErrNotRecipient = &Error{Kind: KindAuthorization, Code: "E_NOT_RECIPIENT"}
)

// NotFound builds an ErrNotFound naming the missing entity.
func NotFound(entity, id string) *Error {
	return ErrNotFound.WithMessagef("%s %s not found", entity, id)
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the Kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf reports the reason code of err, "E_INTERNAL" for untyped errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "E_INTERNAL"
}
