package logging

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/isseis/go-manifest-producer/internal/color"
)

// maxConsoleAttrs limits attributes shown when no priority key is present.
const maxConsoleAttrs = 3

// priorityKeys are shown first on the console, in this order.
var priorityKeys = []string{"error", "binary", "function", "api", "syscall", "path", "mode"}

// skipKeys never appear on the console; they remain in machine logs.
var skipKeys = []string{"run_id", "schema_version", "duration_ms", "worker"}

// formatConsole renders r as a single human readable line.
func formatConsole(r slog.Record, useColor bool) string {
	var sb strings.Builder
	sb.WriteString(formatLevel(r.Level, useColor))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	attrs := consoleAttrs(r)
	for _, a := range attrs {
		sb.WriteByte(' ')
		key := a.Key
		if useColor {
			key = color.Cyan(key)
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(formatValue(a.Value))
	}
	return sb.String()
}

func formatLevel(level slog.Level, useColor bool) string {
	label := strings.ToUpper(level.String())
	if !useColor {
		return "[" + padLevel(label) + "]"
	}
	return color.ForLevel(level)(padLevel(label))
}

func padLevel(label string) string {
	if len(label) < len("ERROR") {
		return label + strings.Repeat(" ", len("ERROR")-len(label))
	}
	return label
}

// consoleAttrs selects priority attributes in priority order, falling back
// to the first few non-skipped attributes.
func consoleAttrs(r slog.Record) []slog.Attr {
	var all []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	var found []slog.Attr
	for _, key := range priorityKeys {
		for _, a := range all {
			if a.Key == key || strings.HasSuffix(a.Key, "."+key) {
				found = append(found, a)
				break
			}
		}
	}
	if len(found) > 0 {
		return found
	}

	for _, a := range all {
		if len(found) == maxConsoleAttrs {
			break
		}
		if !slices.Contains(skipKeys, a.Key) {
			found = append(found, a)
		}
	}
	return found
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindGroup:
		attrs := v.Group()
		parts := make([]string, 0, len(attrs))
		for _, a := range attrs {
			parts = append(parts, a.Key+"="+formatValue(a.Value))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		s := v.String()
		if strings.ContainsAny(s, " \t\"") {
			return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
		}
		return s
	}
}
