// Package apperr defines the domain error taxonomy shared by the service and
// transport layers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. Transport layers map kinds to status codes.
type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
)

// Code is the stable machine-readable reason attached to a domain error.
type Code string

const (
	CodeUserNotFound     Code = "USER_NOT_FOUND"
	CodeCategoryNotFound Code = "CATEGORY_NOT_FOUND"
	CodeEventNotFound    Code = "EVENT_NOT_FOUND"
	CodeRequestNotFound  Code = "REQUEST_NOT_FOUND"

	CodeInvalidDateTime    Code = "INVALID_DATE_TIME"
	CodeInvalidAction      Code = "INVALID_ACTION"
	CodeInvalidStatus      Code = "INVALID_STATUS"
	CodeInvalidRating      Code = "INVALID_RATING"
	CodeInvalidField       Code = "INVALID_FIELD"
	CodeLeadTimeNotMet     Code = "LEAD_TIME_NOT_MET"
	CodeInvalidPage        Code = "INVALID_PAGE"
	CodeInvalidIdentifier  Code = "INVALID_IDENTIFIER"
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"

	CodePublishLeadTimeNotMet Code = "PUBLISH_LEAD_TIME_NOT_MET"
	CodeEventPublished        Code = "EVENT_PUBLISHED"
	CodeEventNotPending       Code = "EVENT_NOT_PENDING"
	CodeEventNotCanceled      Code = "EVENT_NOT_CANCELED"
	CodePublishNotRequested   Code = "PUBLISH_NOT_REQUESTED"
	CodeEventNotPublished     Code = "EVENT_NOT_PUBLISHED"
	CodeOwnEvent              Code = "OWN_EVENT"
	CodeNoFreeSlots           Code = "NO_FREE_SLOTS"
	CodeDuplicateRequest      Code = "DUPLICATE_REQUEST"
	CodeRequestApproved       Code = "REQUEST_ALREADY_APPROVED"
	CodeEventAlreadyStarted   Code = "EVENT_ALREADY_STARTED"
	CodeEventNotStarted       Code = "EVENT_NOT_STARTED"
	CodeNotParticipant        Code = "NOT_PARTICIPANT"
	CodeAlreadyMarked         Code = "ALREADY_MARKED"
	CodeAlreadyRated          Code = "ALREADY_RATED"
)

// Error is a domain error with a kind, a stable code and a detail message.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a domain error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NotFound builds a NOT_FOUND error.
func NotFound(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a VALIDATION error.
func Validation(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a CONFLICT error.
func Conflict(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a domain error and returns it.
func (e *Error) Wrap(cause error) *Error {
	e.Cause = cause
	return e
}

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of the domain error in err's chain, or "" when err
// is not a domain error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries a domain error with the given code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
