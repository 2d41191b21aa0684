// Package color wraps text in ANSI escape sequences for console log output.
//
//nolint:revive // package name conflicts with standard library
package color

import "log/slog"

const (
	resetCode  = "\033[0m"
	boldCode   = "\033[1m"
	grayCode   = "\033[90m"
	greenCode  = "\033[32m"
	yellowCode = "\033[33m"
	redCode    = "\033[31m"
	cyanCode   = "\033[36m"
)

// Color wraps text with an ANSI sequence.
type Color func(text string) string

// NewColor creates a Color that emits ansiCode before the text and a reset
// after it.
func NewColor(ansiCode string) Color {
	return func(text string) string {
		return ansiCode + text + resetCode
	}
}

// Plain returns text unchanged. It is used when color output is disabled.
func Plain(text string) string { return text }

var (
	Bold   = NewColor(boldCode)
	Gray   = NewColor(grayCode)
	Green  = NewColor(greenCode)
	Yellow = NewColor(yellowCode)
	Red    = NewColor(redCode)
	Cyan   = NewColor(cyanCode)
)

// ForLevel returns the color used for a log level.
func ForLevel(level slog.Level) Color {
	switch {
	case level >= slog.LevelError:
		return Red
	case level >= slog.LevelWarn:
		return Yellow
	case level >= slog.LevelInfo:
		return Green
	default:
		return Gray
	}
}
