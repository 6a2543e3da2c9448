package logger

import (
	"context"
	"errors"
	"log/slog"
)

// multiHandler hands each record to every handler that accepts its level.
// "simsearch serve --log-file" pairs a pretty stderr handler with a JSON file
// handler this way.
type multiHandler []slog.Handler

// Multi combines the handlers of several loggers into one logger.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	m := make(multiHandler, 0, len(loggers))
	for _, l := range loggers {
		m = append(m, l.Handler())
	}
	return slog.New(m)
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every enabled handler, even after one of them fails.
func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m multiHandler) each(fn func(slog.Handler) slog.Handler) multiHandler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = fn(h)
	}
	return out
}
