package contracts

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. The typed errors below match them with errors.Is so callers
// can branch on the class without a type switch.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrFinalizationBlocked = errors.New("finalization blocked")
	ErrAlreadyFinalized    = errors.New("request already finalized")
	ErrIntegrity           = errors.New("audit chain integrity violation")
	ErrPrecondition        = errors.New("precondition failed")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
)

// ValidationError reports missing or invalid input. Retry with corrected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidTransitionError reports a state change that the lifecycle forbids.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// FinalizationBlockedError lists every unmet finalization requirement.
type FinalizationBlockedError struct {
	RequestID string
	Reasons   []string
}

func (e *FinalizationBlockedError) Error() string {
	return fmt.Sprintf("finalization blocked for %s: %s", e.RequestID, strings.Join(e.Reasons, "; "))
}

func (e *FinalizationBlockedError) Is(target error) bool { return target == ErrFinalizationBlocked }

// AlreadyFinalizedError is returned by a second finalize. Not retryable.
type AlreadyFinalizedError struct {
	RequestID  string
	DecisionID string
}

func (e *AlreadyFinalizedError) Error() string {
	return fmt.Sprintf("request %s already finalized by decision %s", e.RequestID, e.DecisionID)
}

func (e *AlreadyFinalizedError) Is(target error) bool { return target == ErrAlreadyFinalized }

// IntegrityError signals a broken audit hash chain. It is never repaired.
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit chain broken at entry %d: %s", e.Index, e.Reason)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// PreconditionError reports an operation invoked on an object in the wrong state.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// ForbiddenError reports an actor acting outside its role.
type ForbiddenError struct {
	Actor  string
	Role   string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s (role %q) may not %s", e.Actor, e.Role, e.Action)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }
