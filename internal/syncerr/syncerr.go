// Package syncerr defines the error taxonomy shared by the sync core.
// Callers discriminate with errors.Is / errors.As; nothing here is logged
// or rendered, components decide that at the failure site.
package syncerr

import (
	"errors"
	"fmt"
)

// TransportKind classifies a failed transport attempt.
type TransportKind string

const (
	TransportTimeout           TransportKind = "timeout"
	TransportConnectionRefused TransportKind = "connection_refused"
	TransportServerError       TransportKind = "server_error"
	TransportUnauthorized      TransportKind = "unauthorized"
)

// ErrUnauthorized is the bare sentinel for an invalid or expired session
// token. TransportError wraps it so errors.Is(err, ErrUnauthorized) holds.
var ErrUnauthorized = errors.New("unauthorized")

// TransportError is a single failed network attempt, before any retrying.
type TransportError struct {
	Kind   TransportKind
	Status int // HTTP status for TransportServerError, zero otherwise
	Err    error
}

func (e *TransportError) Error() string {
	if e.Kind == TransportServerError {
		return fmt.Sprintf("transport: server error %d", e.Status)
	}
	return fmt.Sprintf("transport: %s", e.Kind)
}

func (e *TransportError) Unwrap() error {
	if e.Kind == TransportUnauthorized {
		return ErrUnauthorized
	}
	return e.Err
}

// Retryable reports whether the retry policy may re-attempt the call.
// Connection refusals, timeouts and 5xx responses are transient; auth
// failures and other 4xx responses are not.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case TransportTimeout, TransportConnectionRefused:
		return true
	case TransportServerError:
		return e.Status >= 500
	default:
		return false
	}
}

// FinalError is returned once the retry budget is exhausted. It is the
// caller's cue to surface the failure or queue the mutation offline.
type FinalError struct {
	Cause    error
	Attempts int
}

func (e *FinalError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *FinalError) Unwrap() error { return e.Cause }

// ValidationError reports a locally rejected record. It never reaches the
// network layer and is recoverable by the user correcting input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MalformedDataError reports a wire payload missing a mandatory field or
// carrying the wrong type for one. Decoding fails loudly, never by
// silently dropping the field.
type MalformedDataError struct {
	Field  string
	Reason string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed payload field %q: %s", e.Field, e.Reason)
}

// NotFoundError reports an id absent server-side.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s not found", e.Table, e.ID)
}

// ConflictError reports a version mismatch on update. Never auto-retried;
// the caller needs a fresh read first.
type ConflictError struct {
	Table string
	ID    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s/%s was modified concurrently", e.Table, e.ID)
}

// InvalidTransitionError reports a verification state machine misuse, e.g.
// approving an already rejected suggestion. Always a programming or UI
// error, never retried.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// QueuedError reports that a mutation could not reach the server and was
// appended to the offline queue instead. The write is not lost, merely
// deferred; callers should treat this as a soft success.
type QueuedError struct {
	IdempotencyKey string
	Cause          error
}

func (e *QueuedError) Error() string {
	return fmt.Sprintf("queued offline (%s): %v", e.IdempotencyKey, e.Cause)
}

func (e *QueuedError) Unwrap() error { return e.Cause }

// IsRetryable reports whether err may be re-attempted by the retry policy.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	return false
}

// IsFatalForReplay reports whether a queued operation replay must stop.
// Exhausted retries are themselves transient from the queue's point of
// view only when the underlying cause was; validation, auth, conflict and
// not-found failures are always fatal.
func IsFatalForReplay(err error) bool {
	var fe *FinalError
	if errors.As(err, &fe) {
		return !IsRetryable(fe.Cause)
	}
	return true
}
