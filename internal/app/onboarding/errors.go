package onboarding

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/chimeo/internal/app/gateway"
)

var (
	// ErrNotFound means the referenced request or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the request is no longer pending, either because
	// it was resolved earlier or because a concurrent action won.
	ErrInvalidState = errors.New("request is not pending")

	// ErrPreconditionFailed is the store's conditional-write failure, passed
	// through where it is not translated to ErrInvalidState.
	ErrPreconditionFailed = gateway.ErrPreconditionFailed

	// ErrUnauthenticated means a mutating action was called without an
	// identified reviewer.
	ErrUnauthenticated = errors.New("an authenticated reviewer is required")
)

// ValidationError lists the fields that were missing or malformed. Field
// names are the form's JSON names.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	return "validation failed (" + strings.Join(parts, "; ") + ")"
}

// PersistenceError wraps a store failure. Nothing was written.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ProvisioningError reports an approval whose trial account could not be
// written. The request stays approved; reconciliation provisions it later.
type ProvisioningError struct {
	RequestID string
	Email     string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("request %s approved but trial for %s not provisioned: %v", e.RequestID, e.Email, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
