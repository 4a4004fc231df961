package models

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrorKind classifies every failure the coordinator can hand back to a
// caller. Business-rule failures (everything except Unavailable) are final
// for the attempted transition; Unavailable is a transient infrastructure
// fault the caller may retry.
type ErrorKind string

const (
	ErrKindNotFound          ErrorKind = "not_found"
	ErrKindForbidden         ErrorKind = "forbidden"
	ErrKindStaleState        ErrorKind = "stale_state"
	ErrKindCapacityExceeded  ErrorKind = "capacity_exceeded"
	ErrKindInvalidTransition ErrorKind = "invalid_transition"
	ErrKindUnavailable       ErrorKind = "unavailable"
)

// DispatchError carries the kind plus the request id and last observed
// status, enough for a caller to decide between refresh, race-lost message
// and permission error without string matching.
type DispatchError struct {
	Kind      ErrorKind
	RequestID primitive.ObjectID
	Status    RequestStatus
	Message   string
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func NewNotFound(id primitive.ObjectID) *DispatchError {
	return &DispatchError{Kind: ErrKindNotFound, RequestID: id, Message: "request not found"}
}

func NewForbidden(id primitive.ObjectID, role Role, event TransitionEvent) *DispatchError {
	return &DispatchError{
		Kind:      ErrKindForbidden,
		RequestID: id,
		Message:   fmt.Sprintf("role %s may not %s", role, event),
	}
}

func NewStaleState(id primitive.ObjectID, current RequestStatus) *DispatchError {
	return &DispatchError{
		Kind:      ErrKindStaleState,
		RequestID: id,
		Status:    current,
		Message:   fmt.Sprintf("request is %s, transition lost the race", current),
	}
}

func NewCapacityExceeded(id primitive.ObjectID, ward WardType) *DispatchError {
	return &DispatchError{
		Kind:      ErrKindCapacityExceeded,
		RequestID: id,
		Message:   fmt.Sprintf("no %s beds available", ward),
	}
}

func NewInvalidTransition(id primitive.ObjectID, current RequestStatus, event TransitionEvent) *DispatchError {
	return &DispatchError{
		Kind:      ErrKindInvalidTransition,
		RequestID: id,
		Status:    current,
		Message:   fmt.Sprintf("no %s transition out of %s", event, current),
	}
}

func NewUnavailable(err error) *DispatchError {
	return &DispatchError{Kind: ErrKindUnavailable, Message: "storage unavailable", Err: err}
}

// KindOf extracts the classification from any error returned by the
// coordinator. Unknown errors map to Unavailable so callers treat them as
// transient rather than as business outcomes.
func KindOf(err error) ErrorKind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindUnavailable
}

// IsKind is a convenience for tests and handlers.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
