// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package terminal

// Role selects one of the three standard streams.
type Role int

const (
	Stdin Role = iota
	Stdout
	Stderr
)

func (r Role) String() string {
	switch r {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return "unknown"
	}
}

// Size is a terminal size in character cells.
type Size struct {
	Cols uint16
	Rows uint16
}

// DefaultSize is reported when the OS returns a zero dimension, as it
// does for a pty nobody has sized yet.
var DefaultSize = Size{Cols: 80, Rows: 24}

// normalize substitutes DefaultSize for a size with a zero dimension.
func (s Size) normalize() Size {
	if s.Cols == 0 || s.Rows == 0 {
		return DefaultSize
	}
	return s
}

// Mouse reporting control sequences: basic button tracking (1000),
// button-event tracking (1002), any-event tracking (1003), urxvt
// extended coordinates (1015), and SGR extended coordinates (1006).
// Disable turns them off in reverse order.
const (
	EnableMouseSequence  = "\x1b[?1000h\x1b[?1002h\x1b[?1003h\x1b[?1015h\x1b[?1006h"
	DisableMouseSequence = "\x1b[?1006l\x1b[?1015l\x1b[?1003l\x1b[?1002l\x1b[?1000l"
)
