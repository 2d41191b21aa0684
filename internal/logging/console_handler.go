package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ErrConsoleWriterRequired is returned when ConsoleHandlerOptions has no writer.
var ErrConsoleWriterRequired = errors.New("ConsoleHandler: Writer is required")

// ConsoleHandler writes compact, optionally colored lines for a person
// watching an interactive terminal.
type ConsoleHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	color  bool
	attrs  []slog.Attr
	prefix string
}

// ConsoleHandlerOptions configures a ConsoleHandler.
type ConsoleHandlerOptions struct {
	Writer io.Writer
	Level  slog.Leveler
	Color  bool
}

// NewConsoleHandler creates a ConsoleHandler.
func NewConsoleHandler(opts ConsoleHandlerOptions) (*ConsoleHandler, error) {
	if opts.Writer == nil {
		return nil, ErrConsoleWriterRequired
	}
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	return &ConsoleHandler{
		mu:     &sync.Mutex{},
		writer: opts.Writer,
		level:  level,
		color:  opts.Color,
	}, nil
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	record := r.Clone()
	if h.prefix != "" {
		// Record attributes belong to the open groups too.
		var own []slog.Attr
		record.Attrs(func(a slog.Attr) bool {
			own = append(own, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
			return true
		})
		record = slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
		record.AddAttrs(own...)
	}
	record.AddAttrs(h.attrs...)

	line := formatConsole(record, h.color)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, line+"\n")
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}
