// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tui is the terminal dashboard. The model owns the tick loop: each
// tick message steps the runner on the bubbletea goroutine, so no separate
// tick service runs while the dashboard is open.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ManuGH/agribot/internal/host"
	"github.com/ManuGH/agribot/internal/workflow"
)

const commandTimeout = 5 * time.Second

// Stepper is the part of host.Runner the dashboard drives.
type Stepper interface {
	Step()
	Submit(ctx context.Context, cmd host.Command) error
	Status() workflow.Status
}

type tickMsg time.Time

type commandResultMsg struct {
	cmd host.Command
	err error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	runner  Stepper
	quantum time.Duration
	title   string

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	status  workflow.Status
	notice  string
	pending bool
	width   int
}

// New returns a dashboard stepping runner every quantum.
func New(runner Stepper, quantum time.Duration, title string) Model {
	return Model{
		runner:   runner,
		quantum:  quantum,
		title:    title,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(stateStyle)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		status:   runner.Status(),
	}
}

// Status returns the last snapshot the dashboard rendered.
func (m Model) Status() workflow.Status { return m.status }

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.quantum, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// submitCmd runs off the bubbletea goroutine; the reply arrives once a
// later tick steps the runner.
func (m Model) submitCmd(cmd host.Command) tea.Cmd {
	runner := m.runner
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandResultMsg{cmd: cmd, err: runner.Submit(ctx, cmd)}
	}
}

// Init starts the tick loop and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.spinner.Tick)
}

// Update handles ticks, key presses and command results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.runner.Step()
		m.status = m.runner.Status()
		return m, m.tickCmd()

	case commandResultMsg:
		m.pending = false
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s: %v", msg.cmd, msg.err)
		} else {
			m.notice = msg.cmd.String() + " accepted"
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		if p, ok := updated.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Start):
			return m.submit(host.CommandStart)
		case key.Matches(msg, m.keys.Stop):
			return m.submit(host.CommandStop)
		}
	}
	return m, nil
}

func (m Model) submit(cmd host.Command) (tea.Model, tea.Cmd) {
	if m.pending {
		m.notice = "command in progress"
		return m, nil
	}
	m.pending = true
	m.notice = cmd.String() + " requested"
	return m, m.submitCmd(cmd)
}

// View renders the dashboard.
func (m Model) View() string {
	st := m.status
	var rows []string

	state := stateStyle.Render(st.State)
	if st.State != workflow.StateIdle.String() && st.State != workflow.StatePaused.String() && st.ErrorKind == "" {
		state = m.spinner.View() + " " + state
	}
	rows = append(rows, row("State", state))
	if st.SessionKind != "" {
		rows = append(rows, row("Session", fmt.Sprintf("%s (merged %d, refill %t)", st.SessionKind, st.MergedSessions, st.Refill)))
	}
	if st.TotalStations > 0 {
		ratio := float64(st.StationsCompleted) / float64(st.TotalStations)
		rows = append(rows, row("Stations", fmt.Sprintf("%s %d/%d", m.progress.ViewAs(ratio), st.StationsCompleted, st.TotalStations)))
	}
	if st.Station != "" {
		rows = append(rows, row("Station", st.Station))
	}
	rows = append(rows, row("Connection", st.Connection))
	rows = append(rows, row("Resource", fmt.Sprintf("%s  full %d  empty %d  delay %s", st.Mode, st.FullUnits, st.EmptyUnits, st.AdaptiveDelay)))
	if st.Countdown != "" {
		line := st.Countdown
		if st.PauseReason != "" {
			line = fmt.Sprintf("%s (%s)", line, st.PauseReason)
		}
		rows = append(rows, row("Paused", pauseStyle.Render(line)))
	}
	if st.ErrorKind != "" {
		rows = append(rows, row("Error", errorStyle.Render(fmt.Sprintf("%s: %s", st.ErrorKind, st.Error))))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}
