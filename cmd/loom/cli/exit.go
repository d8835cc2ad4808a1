// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ExitError requests a specific exit code without an extra error line.
// The command has already written whatever the user needs to see.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the requested exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitStatus maps an error returned by Execute to a process exit code
// and reports whether the error should still be printed.
func ExitStatus(err error) (code int, report bool) {
	if err == nil {
		return 0, false
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode(), false
	}
	return 1, true
}
