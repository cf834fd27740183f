package contracts

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a contract, package or document does not exist
var ErrNotFound = errors.New("not found")

// ValidationError represents a request rejected before any external call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PolicyViolationError represents an operation rejected by a lifecycle policy,
// such as generating a second open estimate. No mutation has taken place.
type PolicyViolationError struct {
	Policy string
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Policy, e.Reason)
}

// IsPolicyViolationError checks if an error is a policy violation
func IsPolicyViolationError(err error) bool {
	var pe *PolicyViolationError
	return errors.As(err, &pe)
}

// ExternalProviderError wraps a failure from the ledger or account
// provisioning provider.
type ExternalProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalProviderError) Unwrap() error { return e.Err }

// IsExternalProviderError checks if an error came from an external provider call
func IsExternalProviderError(err error) bool {
	var ee *ExternalProviderError
	return errors.As(err, &ee)
}

// PersistenceError represents a store write that failed after an external
// resource was already created. ExternalID lets an operator reconcile or
// roll back by hand.
type PersistenceError struct {
	Op         string
	ExternalID string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.ExternalID != "" {
		return fmt.Sprintf("persistence failed during %s (external resource %s): %v", e.Op, e.ExternalID, e.Err)
	}
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError checks if an error is a persistence error
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
