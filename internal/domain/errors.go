package domain

import (
	"fmt"
	"time"
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// DeniedError is returned when an editing lock is held by another actor.
type DeniedError struct {
	HeldBy      string
	DisplayName string
	Since       time.Time
}

func (e DeniedError) Error() string {
	return fmt.Sprintf("lock held by %s since %s", e.HeldBy, e.Since.Format(time.RFC3339))
}

func (e DeniedError) Is(target error) bool {
	_, ok := target.(DeniedError)
	if ok {
		return true
	}
	_, ok = target.(*DeniedError)
	return ok
}

var ErrDenied = DeniedError{}

// ConflictError reports that the server copy changed since the editor's copy
// was fetched. The caller must re-fetch and re-apply.
type ConflictError struct {
	Collection      Kind
	ContentID       string
	ServerUpdatedAt time.Time
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s/%s changed on server at %s", e.Collection, e.ContentID, e.ServerUpdatedAt.Format(time.RFC3339))
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}

// ManualConflictError reports that a conflict record was persisted and the
// write is withheld until an administrator resolves it.
type ManualConflictError struct {
	ConflictID string
}

func (e ManualConflictError) Error() string {
	return fmt.Sprintf("conflict %s requires manual resolution", e.ConflictID)
}

func (e ManualConflictError) Is(target error) bool {
	_, ok := target.(ManualConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ManualConflictError)
	return ok
}

var ErrManualConflict = ManualConflictError{}

// ValidationError reports a field failing its minimum constraints. It is
// raised before any write reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// PermissionError reports an operation gated on a role the actor lacks.
type PermissionError struct {
	Actor    string
	Required int
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("requires %s role", RoleString(e.Required))
}

func (e PermissionError) Is(target error) bool {
	_, ok := target.(PermissionError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionError)
	return ok
}

var ErrPermission = PermissionError{}

// TransportError wraps a store or network failure.
type TransportError struct {
	Op    string
	Cause error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e TransportError) Unwrap() error { return e.Cause }

func (e TransportError) Is(target error) bool {
	_, ok := target.(TransportError)
	if ok {
		return true
	}
	_, ok = target.(*TransportError)
	return ok
}

var ErrTransport = TransportError{}
