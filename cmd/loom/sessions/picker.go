// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/loom/session"
)

// errPickerCancelled is returned when the user leaves the picker
// without choosing.
var errPickerCancelled = errors.New("no session selected")

type pickerKeys struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

var defaultPickerKeys = pickerKeys{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "attach"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "cancel"),
	),
}

// pickerModel chooses one session from a list.
type pickerModel struct {
	sessions []session.Info
	keys     pickerKeys
	cursor   int
	chosen   string
	done     bool

	title    lipgloss.Style
	selected lipgloss.Style
	dim      lipgloss.Style
}

func newPickerModel(sessions []session.Info) pickerModel {
	return pickerModel{
		sessions: sessions,
		keys:     defaultPickerKeys,
		title:    lipgloss.NewStyle().Bold(true),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (model pickerModel) Init() tea.Cmd { return nil }

func (model pickerModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	keyMessage, ok := message.(tea.KeyMsg)
	if !ok {
		return model, nil
	}
	switch {
	case key.Matches(keyMessage, model.keys.Quit):
		model.done = true
		return model, tea.Quit
	case key.Matches(keyMessage, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(keyMessage, model.keys.Down):
		if model.cursor < len(model.sessions)-1 {
			model.cursor++
		}
	case key.Matches(keyMessage, model.keys.Select):
		if len(model.sessions) > 0 {
			model.chosen = model.sessions[model.cursor].Name
		}
		model.done = true
		return model, tea.Quit
	}
	return model, nil
}

func (model pickerModel) View() string {
	if model.done {
		return ""
	}
	width := 0
	for _, info := range model.sessions {
		width = max(width, ansi.StringWidth(info.Name))
	}

	var view strings.Builder
	view.WriteString(model.title.Render("Choose a session") + "\n\n")
	for i, info := range model.sessions {
		name := info.Name + strings.Repeat(" ", width-ansi.StringWidth(info.Name))
		detail := "created " + FormatAge(info.Age)
		if info.Liveness == session.DeadResurrectable {
			detail += ", exited"
		}
		if i == model.cursor {
			fmt.Fprintf(&view, "> %s  %s\n", model.selected.Render(name), model.dim.Render(detail))
		} else {
			fmt.Fprintf(&view, "  %s  %s\n", name, model.dim.Render(detail))
		}
	}
	fmt.Fprintf(&view, "\n%s\n", model.dim.Render(pickerHelp(model.keys)))
	return view.String()
}

func pickerHelp(keys pickerKeys) string {
	var parts []string
	for _, binding := range []key.Binding{keys.Up, keys.Down, keys.Select, keys.Quit} {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return strings.Join(parts, " • ")
}

// pickSession runs the picker on the given terminal streams.
func pickSession(sessions []session.Info, input io.Reader, output io.Writer) (string, error) {
	program := tea.NewProgram(newPickerModel(sessions), tea.WithInput(input), tea.WithOutput(output))
	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("running session picker: %w", err)
	}
	chosen := final.(pickerModel).chosen
	if chosen == "" {
		return "", errPickerCancelled
	}
	return chosen, nil
}
