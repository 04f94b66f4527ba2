package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
// - Default (white/black): Primary text
// - Accent (soft purple #A78BFA unless configured): paths, link targets
// - Muted (gray): Secondary info, confidences, hints
// - No colored success/error/warning - use unicode symbols only

const defaultAccent = "#A78BFA"

var (
	// accentColor is the configured accent, empty when disabled.
	accentColor = defaultAccent

	// Accent style for file paths, link targets, highlights
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent))

	// Muted style for secondary info and hints
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(defaultAccent)).Bold(true)
)

// ConfigureTheme sets the accent color from a ui.accent config value:
// an ANSI code (0-255), "#rgb", or "#rrggbb". An empty value or "default"
// keeps the built-in accent, "none" or "off" turns accents off, and
// anything unparseable falls back to the built-in accent.
func ConfigureTheme(accent string) {
	color, ok := normalizeAccentColor(accent)
	if !ok {
		color = defaultAccent
	}
	accentColor = color
	if color == "" {
		Accent = lipgloss.NewStyle()
		AccentBold = lipgloss.NewStyle().Bold(true)
		return
	}
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	AccentBold = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// AccentColor returns the active accent and whether accents are on.
func AccentColor() (string, bool) {
	return accentColor, accentColor != ""
}

// normalizeAccentColor returns the color to use and whether v was
// understood. "none" and "off" are understood as an empty color.
func normalizeAccentColor(v string) (string, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "none", "off":
		return "", true
	case "", "default":
		return defaultAccent, true
	}

	if hex, found := strings.CutPrefix(v, "#"); found {
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return "", false
		}
		if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
			return "", false
		}
		return "#" + hex, true
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 255 {
		return "", false
	}
	return strconv.Itoa(n), true
}
