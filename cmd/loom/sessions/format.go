// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/loom/session"
)

// ListFormat controls list-sessions output.
type ListFormat struct {
	// Short prints names only.
	Short bool

	// Profile is the colour profile of the output. termenv.Ascii
	// produces plain text.
	Profile termenv.Profile

	// Current marks the session this process runs inside.
	Current string
}

type listStyles struct {
	name    lipgloss.Style
	dead    lipgloss.Style
	age     lipgloss.Style
	current lipgloss.Style
	exited  lipgloss.Style
}

func newListStyles(w io.Writer, profile termenv.Profile) listStyles {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return listStyles{
		name:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		dead:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("8")),
		age:     renderer.NewStyle().Bold(true),
		current: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		exited:  renderer.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// FormatAge renders a session age as "5 minutes ago".
func FormatAge(age time.Duration) string {
	now := time.Now()
	return humanize.RelTime(now.Add(-age), now, "ago", "from now")
}

// WriteSessionList writes one line per session:
//
//	name [Created 5 minutes ago] (current)
//	name [Created 2 days ago] (EXITED - attach to resurrect)
func WriteSessionList(w io.Writer, sessions []session.Info, format ListFormat) error {
	if format.Short {
		for _, info := range sessions {
			if _, err := fmt.Fprintln(w, info.Name); err != nil {
				return err
			}
		}
		return nil
	}

	styles := newListStyles(w, format.Profile)
	names := make([]string, len(sessions))
	width := 0
	for i, info := range sessions {
		style := styles.name
		if info.Liveness == session.DeadResurrectable {
			style = styles.dead
		}
		names[i] = style.Render(info.Name)
		width = max(width, ansi.StringWidth(names[i]))
	}

	for i, info := range sessions {
		var line strings.Builder
		line.WriteString(names[i])
		line.WriteString(strings.Repeat(" ", width-ansi.StringWidth(names[i])))
		fmt.Fprintf(&line, " [Created %s]", styles.age.Render(FormatAge(info.Age)))
		switch {
		case info.Liveness == session.DeadResurrectable:
			line.WriteString(" " + styles.exited.Render("(EXITED - attach to resurrect)"))
		case info.Name == format.Current:
			line.WriteString(" " + styles.current.Render("(current)"))
		}
		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}

// outputProfile is the colour profile to use for w, or plain text when
// formatting is disabled.
func outputProfile(w io.Writer, noFormatting bool) termenv.Profile {
	if noFormatting {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}
