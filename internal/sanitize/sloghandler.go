package sanitize

import (
	"context"
	"log/slog"
)

// RedactingHandler wraps a slog.Handler and scrubs secrets from all
// string-valued attributes before passing them to the inner handler, so
// no secret leaks into log output regardless of where the log call
// originates.
type RedactingHandler struct {
	inner   slog.Handler
	secrets *Secrets
	attrs   []slog.Attr
}

// Compile-time check.
var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler creates a handler that wraps inner, applying the
// secret scrubber to every string attribute value.
func NewRedactingHandler(inner slog.Handler, secrets *Secrets) *RedactingHandler {
	return &RedactingHandler{inner: inner, secrets: secrets}
}

// Enabled delegates to the inner handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle scrubs string values in the record's attributes and message,
// then delegates to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	rec.Message = h.secrets.Scrub(rec.Message)

	scrubbed := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	scrubbed.AddAttrs(h.attrs...)
	rec.Attrs(func(a slog.Attr) bool {
		scrubbed.AddAttrs(h.scrubAttr(a))
		return true
	})

	return h.inner.Handle(ctx, scrubbed)
}

// WithAttrs returns a new handler with pre-resolved, scrubbed attributes.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.scrubAttr(a)
	}
	return &RedactingHandler{
		inner:   h.inner.WithAttrs(scrubbed),
		secrets: h.secrets,
	}
}

// WithGroup returns a new handler scoped to the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{
		inner:   h.inner.WithGroup(name),
		secrets: h.secrets,
	}
}

func (h *RedactingHandler) scrubAttr(a slog.Attr) slog.Attr {
	// Resolve first so LogValuer, error, and Stringer types are converted
	// to their final representation.
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.secrets.Scrub(a.Value.String()))
	case slog.KindGroup:
		attrs := a.Value.Group()
		scrubbed := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			scrubbed[i] = h.scrubAttr(ga)
		}
		a.Value = slog.GroupValue(scrubbed...)
	case slog.KindAny:
		resolved := a.Value.String()
		if scrubbed := h.secrets.Scrub(resolved); scrubbed != resolved {
			a.Value = slog.StringValue(scrubbed)
		}
	}
	return a
}
