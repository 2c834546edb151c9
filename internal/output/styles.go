package output

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	step    lipgloss.Style
	gate    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true),
		step:    r.NewStyle().Foreground(lipgloss.Color("51")).Bold(true),
		gate:    r.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("226")).Bold(true).Padding(0, 1),
		success: r.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		warning: r.NewStyle().Foreground(lipgloss.Color("226")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		header:  r.NewStyle().Foreground(lipgloss.Color("45")).Bold(true).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
	}
}
