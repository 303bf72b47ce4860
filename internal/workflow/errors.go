package workflow

import (
	"context"
	"errors"
	"fmt"

	"studioflow/api/internal/rbac"
	"studioflow/api/internal/store"
)

// Kind classifies workflow failures. InvalidTransition and Forbidden are
// deliberately distinct: the first means the lifecycle graph has no such
// edge, the second means the edge exists but the actor's role may not
// take it, and clients render the two differently.
type Kind string

const (
	KindInvalidTransition Kind = "invalid_transition"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindAlreadyFinalized  Kind = "already_finalized"
	KindValidation        Kind = "validation"
	KindTimeout           Kind = "timeout"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func errInvalidTransition(from, to store.TaskStatus) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("no transition from %s to %s", from, to)}
}

func errForbidden(role rbac.Role, from, to store.TaskStatus) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf("role %s may not move %s to %s", role, from, to)}
}

func errConflict(taskID string) *Error {
	return &Error{Kind: KindConflict, Message: "task " + taskID + " changed concurrently, refetch and retry"}
}

func errAlreadyFinalized(requestID string, status store.RequestStatus) *Error {
	return &Error{Kind: KindAlreadyFinalized, Message: fmt.Sprintf("request %s is already %s", requestID, status)}
}

func errValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewValidationError reports a missing or malformed input field.
func NewValidationError(message string) *Error { return errValidation(message) }

// NewForbiddenError reports an actor whose role may not perform the
// operation at all.
func NewForbiddenError(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewAlreadyFinalizedError reports a terminal entity being re-mutated.
func NewAlreadyFinalizedError(requestID string, status store.RequestStatus) *Error {
	return errAlreadyFinalized(requestID, status)
}

// NewConflictError reports a lost optimistic-concurrency race.
func NewConflictError(entityID string) *Error { return errConflict(entityID) }

// KindOf extracts the failure kind from err, classifying context
// deadline errors as Timeout. An empty Kind means the error is not part
// of the workflow taxonomy.
func KindOf(err error) Kind {
	var wfErr *Error
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// Classify wraps network/storage deadline errors into the Timeout kind
// so callers see one taxonomy instead of raw context errors.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: op + " timed out"}
	}
	return err
}
