// Package logging configures log/slog for the manifest producer. Records fan
// out to a console handler for humans and to text or JSON handlers for
// machines and log files.
package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler dispatches each record to every enabled child handler.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a MultiHandler. Nil handlers are skipped.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	hs := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &MultiHandler{handlers: hs}
}

// Enabled reports whether any child handler accepts level.
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of r to each enabled child and joins their errors.
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handlers returns a copy of the child handlers.
func (h *MultiHandler) Handlers() []slog.Handler {
	return append([]slog.Handler(nil), h.handlers...)
}

func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(c slog.Handler) slog.Handler { return c.WithAttrs(attrs) })
}

func (h *MultiHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(c slog.Handler) slog.Handler { return c.WithGroup(name) })
}

func (h *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, c := range h.handlers {
		hs[i] = fn(c)
	}
	return &MultiHandler{handlers: hs}
}
