// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies command failures.
type ErrorCategory string

const (
	// CategoryValidation: bad arguments or an invalid session name.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound: the named session does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict: the operation clashes with existing state, such
	// as creating a session whose name is taken.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient: a session did not answer in time.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: an unexpected I/O failure or bug.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command error. It wraps the underlying
// error so errors.Is and errors.As see through it.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the first ToolError in err's
// chain, or CategoryInternal.
func CategoryOf(err error) ErrorCategory {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	return CategoryInternal
}
