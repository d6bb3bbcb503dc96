// Package ui renders styled terminal output for the CLI. Styling is
// applied only when stdout is a color-capable terminal; piped output stays
// plain.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// enabled is resolved once; tests override it to force either mode.
var enabled = func() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.DefaultOutput().Profile != termenv.Ascii
}()

func render(style lipgloss.Style, s string) string {
	if !enabled {
		return s
	}
	return style.Render(s)
}

// Pass styles success output.
func Pass(s string) string { return render(passStyle, s) }

// Warn styles warning output.
func Warn(s string) string { return render(warnStyle, s) }

// Err styles failure output.
func Err(s string) string { return render(errStyle, s) }

// Accent styles identifiers and values the eye should land on.
func Accent(s string) string { return render(accentStyle, s) }

// Dim styles secondary detail.
func Dim(s string) string { return render(dimStyle, s) }

// OK returns a styled check mark.
func OK() string { return Pass("✓") }

// Cross returns a styled failure mark.
func Cross() string { return Err("✗") }
