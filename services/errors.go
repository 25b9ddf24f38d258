package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable discriminator surfaced to callers.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindStateConflict ErrorKind = "state_conflict"
	KindNotFound      ErrorKind = "not_found"
	KindPersistence   ErrorKind = "persistence"
)

// LifecycleError is returned by every lifecycle and pricing operation.
// Code narrows the Kind (e.g. "already_paused") and is also stable.
type LifecycleError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *LifecycleError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target carries one, so both
// errors.Is(err, ErrStateConflict) and errors.Is(err, ErrAlreadyPaused) work.
func (e *LifecycleError) Is(target error) bool {
	t, ok := target.(*LifecycleError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrValidation    = &LifecycleError{Kind: KindValidation}
	ErrStateConflict = &LifecycleError{Kind: KindStateConflict}
	ErrNotFound      = &LifecycleError{Kind: KindNotFound}
	ErrPersistence   = &LifecycleError{Kind: KindPersistence}

	ErrLifecycleExhausted = &LifecycleError{Kind: KindStateConflict, Code: "lifecycle_exhausted"}
	ErrNoActivePhase      = &LifecycleError{Kind: KindStateConflict, Code: "no_active_phase"}
	ErrAlreadyPaused      = &LifecycleError{Kind: KindStateConflict, Code: "already_paused"}
	ErrNotPaused          = &LifecycleError{Kind: KindStateConflict, Code: "not_paused"}
	ErrStaleVersion       = &LifecycleError{Kind: KindStateConflict, Code: "stale_version"}
	ErrTornSnapshot       = &LifecycleError{Kind: KindStateConflict, Code: "snapshot_inconsistent"}
)

func validationError(code, format string, args ...any) error {
	return &LifecycleError{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func conflictError(code, format string, args ...any) error {
	return &LifecycleError{Kind: KindStateConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(code, format string, args ...any) error {
	return &LifecycleError{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// persistenceError wraps a storage failure. LifecycleErrors pass through untouched
// so a conflict raised inside a transaction keeps its kind.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *LifecycleError
	if errors.As(err, &le) {
		return err
	}
	return &LifecycleError{Kind: KindPersistence, Code: "storage_failure", Message: op, Err: err}
}

// KindOf extracts the discriminator; unknown errors count as persistence failures.
func KindOf(err error) ErrorKind {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindPersistence
}

// CodeOf extracts the narrow code, falling back to the kind.
func CodeOf(err error) string {
	var le *LifecycleError
	if errors.As(err, &le) && le.Code != "" {
		return le.Code
	}
	return string(KindOf(err))
}
