package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerColors = []lipgloss.Color{
		lipgloss.Color("#FF6B6B"),
		lipgloss.Color("#FFA86B"),
		lipgloss.Color("#95E1D3"),
		lipgloss.Color("#4ECDC4"),
	}

	accent     = lipgloss.Color("#4ECDC4")
	titleStyle = lipgloss.NewStyle().Bold(true)
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3"))
	markStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA86B")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

func showBanner(w io.Writer) {
	word := "fwrd news"

	// One color per letter, cycling through the gradient
	var b strings.Builder
	for i, r := range word {
		if r == ' ' {
			b.WriteString("  ")
			continue
		}
		style := lipgloss.NewStyle().
			Foreground(bannerColors[i%len(bannerColors)]).
			Bold(true)
		b.WriteString(style.Render(strings.ToUpper(string(r))) + " ")
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		b.String(),
		metaStyle.Render("headlines · search · bookmarks"),
	)

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(accent).
		Padding(0, 2).
		Render(body)

	fmt.Fprintln(w, lipgloss.NewStyle().
		Width(60).
		Align(lipgloss.Center).
		MarginBottom(1).
		Render(box))
}
