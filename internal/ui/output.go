package ui

import (
	"fmt"
	"strings"
)

// Status symbols. Output carries meaning through these, not color.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
	SymbolArrow   = "→"
	SymbolBullet  = "•"
)

func status(symbol, msg string) string {
	return symbol + " " + msg
}

// Success prefixes msg with a checkmark.
func Success(msg string) string { return status(SymbolSuccess, msg) }

// Successf is Success with formatting.
func Successf(format string, args ...any) string { return Success(fmt.Sprintf(format, args...)) }

// Error prefixes msg with a cross.
func Error(msg string) string { return status(SymbolError, msg) }

// Warning prefixes msg with a warning sign.
func Warning(msg string) string { return status(SymbolWarning, msg) }

// Info prefixes msg with an info sign.
func Info(msg string) string { return status(SymbolInfo, msg) }

// Infof is Info with formatting.
func Infof(format string, args ...any) string { return Info(fmt.Sprintf(format, args...)) }

// Check is Success with the checkmark in the accent color.
func Check(msg string) string { return status(Accent.Render(SymbolSuccess), msg) }

// Header returns a bold section header.
func Header(msg string) string {
	return Bold.Render(msg)
}

// FilePath renders a vault or bundle path in the accent color.
func FilePath(path string) string {
	return Accent.Render(path)
}

// Hint returns muted secondary text.
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Link renders a wikilink and where it resolved, "[[Plan]] → Projects/Plan.md".
func Link(original, destination string) string {
	arrow := Muted.Render(SymbolArrow)
	if destination == "" {
		return fmt.Sprintf("%s %s %s", original, arrow, Muted.Render("(unresolved)"))
	}
	return fmt.Sprintf("%s %s %s", original, arrow, FilePath(destination))
}

// Confidence renders a resolution confidence as a muted percentage.
func Confidence(c float64) string {
	return Muted.Render(fmt.Sprintf("%.0f%%", c*100))
}

// Method renders a resolution method with its confidence, "filename 90%".
// Failed resolutions carry no confidence worth showing.
func Method(method string, confidence float64) string {
	if method == "failed" {
		return SymbolError + " " + method
	}
	return method + " " + Confidence(confidence)
}

// Count returns a parenthesized count, "(3 broken links)".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("(%d %s)", n, singular)
	}
	return fmt.Sprintf("(%d %s)", n, plural)
}

// ErrorWarningCounts returns "(2 errors, 1 warning)", dropping the error
// part when there are none.
func ErrorWarningCounts(errors, warnings int) string {
	if errors == 0 {
		return Count(warnings, "warning", "warnings")
	}
	parts := []string{fmt.Sprintf("%d %s", errors, pluralize("error", errors))}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", warnings, pluralize("warning", warnings)))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func pluralize(singular string, count int) string {
	if count == 1 {
		return singular
	}
	return singular + "s"
}
