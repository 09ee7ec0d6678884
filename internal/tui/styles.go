// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#98C379")
	colorYellow = lipgloss.Color("#E5C07B")
	colorRed    = lipgloss.Color("#E06C75")
	colorBlue   = lipgloss.Color("#61AFEF")
	colorMuted  = lipgloss.Color("#636B78")
	colorBorder = lipgloss.Color("#3F4451")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true).
			PaddingLeft(1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(12)

	stateStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	pauseStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)
)
