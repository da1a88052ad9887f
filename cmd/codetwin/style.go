package main

import "github.com/charmbracelet/lipgloss"

// Colors degrade to plain text when output is not a terminal.
var (
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	problemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)
