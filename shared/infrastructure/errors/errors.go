/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package errors provides domain-specific error types for vault-config.
// These errors distinguish failures that abort construction (NotReady,
// Validation), failures that abort a single operation (NotAuthenticated),
// failures recorded into the workflow progress (StepFailed, HealthProbeFailed)
// and programming errors (ChainMisuse).
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid configuration or input.
// This is a permanent error - retrying won't help without user correction.
type ValidationError struct {
	Field   string // The field that failed validation
	Value   string // The invalid value (may be redacted for sensitive data)
	Message string // Why validation failed
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// NotReadyError indicates the control plane could not be reached when the
// engine was constructed. It is fatal for construction.
type NotReadyError struct {
	Address string // Vault address that was probed
	Cause   error  // The underlying error, if any
}

func (e *NotReadyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vault at %s not ready: %v", e.Address, e.Cause)
	}
	return fmt.Sprintf("vault at %s not ready, unable to invoke vault API methods", e.Address)
}

// Unwrap returns the underlying cause for errors.As/Is support.
func (e *NotReadyError) Unwrap() error {
	return e.Cause
}

// NewNotReadyError creates a NotReadyError.
func NewNotReadyError(address string, cause error) *NotReadyError {
	return &NotReadyError{
		Address: address,
		Cause:   cause,
	}
}

// IsNotReadyError returns true if the error is a NotReadyError.
func IsNotReadyError(err error) bool {
	var notReadyErr *NotReadyError
	return errors.As(err, &notReadyErr)
}

// NotAuthenticatedError indicates an operation ran without a valid session.
// The operation is aborted before any mutation is issued.
type NotAuthenticatedError struct {
	Operation string // What operation was attempted
}

func (e *NotAuthenticatedError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("vault client is not authenticated for %s", e.Operation)
	}
	return "vault client is not authenticated"
}

// NewNotAuthenticatedError creates a NotAuthenticatedError.
func NewNotAuthenticatedError(operation string) *NotAuthenticatedError {
	return &NotAuthenticatedError{Operation: operation}
}

// IsNotAuthenticatedError returns true if the error is a NotAuthenticatedError.
func IsNotAuthenticatedError(err error) bool {
	var authErr *NotAuthenticatedError
	return errors.As(err, &authErr)
}

// HealthProbeFailedError indicates a health probe reached its failure
// threshold, or was already latched closed. Fatal to the current workflow run.
type HealthProbeFailedError struct {
	Target   string // What was probed
	Failures int    // Failure ticks observed
	Latched  bool   // The probe was already closed before this run
}

func (e *HealthProbeFailedError) Error() string {
	if e.Latched {
		return fmt.Sprintf("health probe for %s is closed", e.Target)
	}
	return fmt.Sprintf("health probe for %s failed after %d attempts", e.Target, e.Failures)
}

// NewHealthProbeFailedError creates a HealthProbeFailedError.
func NewHealthProbeFailedError(target string, failures int, latched bool) *HealthProbeFailedError {
	return &HealthProbeFailedError{
		Target:   target,
		Failures: failures,
		Latched:  latched,
	}
}

// IsHealthProbeFailedError returns true if the error is a HealthProbeFailedError.
func IsHealthProbeFailedError(err error) bool {
	var probeErr *HealthProbeFailedError
	return errors.As(err, &probeErr)
}

// StepFailedError indicates a workflow step's guarded condition was false.
type StepFailedError struct {
	Step   string // Workflow step name
	Reason string // Human readable trace
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("step %q failed: %s", e.Step, e.Reason)
}

// NewStepFailedError creates a StepFailedError.
func NewStepFailedError(step, reason string) *StepFailedError {
	return &StepFailedError{
		Step:   step,
		Reason: reason,
	}
}

// IsStepFailedError returns true if the error is a StepFailedError.
func IsStepFailedError(err error) bool {
	var stepErr *StepFailedError
	return errors.As(err, &stepErr)
}

// ChainMisuseError indicates the chain executor was wired incorrectly,
// such as registering a second error handler. It surfaces at setup time.
type ChainMisuseError struct {
	Message string
}

func (e *ChainMisuseError) Error() string {
	return fmt.Sprintf("chain misuse: %s", e.Message)
}

// NewChainMisuseError creates a ChainMisuseError.
func NewChainMisuseError(message string) *ChainMisuseError {
	return &ChainMisuseError{Message: message}
}

// IsChainMisuseError returns true if the error is a ChainMisuseError.
func IsChainMisuseError(err error) bool {
	var misuseErr *ChainMisuseError
	return errors.As(err, &misuseErr)
}

// TransientError indicates a temporary failure talking to Vault.
// Common causes: network issues, Vault unavailable, rate limiting.
type TransientError struct {
	Operation string // What operation was attempted
	Cause     error  // The underlying error
}

func (e *TransientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transient error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("transient error during %s", e.Operation)
}

// Unwrap returns the underlying cause for errors.As/Is support.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// NewTransientError creates a TransientError.
func NewTransientError(operation string, cause error) *TransientError {
	return &TransientError{
		Operation: operation,
		Cause:     cause,
	}
}

// IsTransientError returns true if the error is a TransientError.
func IsTransientError(err error) bool {
	var transientErr *TransientError
	return errors.As(err, &transientErr)
}
