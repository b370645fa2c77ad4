package sink

import (
	"context"
	"log/slog"

	"github.com/jonas-merkle/slacksink/pkg/core"
)

// Handler bridges the standard structured-logging pipeline into the
// sink: records at or above the minimum level become sink events.
// Attach it alongside the regular handlers (console, file) so chat
// delivery stays a fan-out target, not the primary log destination.
type Handler struct {
	sink     *Sink
	minLevel slog.Level
	attrs    []slog.Attr
}

func NewHandler(s *Sink, minLevel slog.Level) *Handler {
	return &Handler{sink: s, minLevel: minLevel}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	event := core.Event{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		addAttr(&event, fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(&event, fields, a)
		return true
	})
	if len(fields) > 0 {
		event.Fields = fields
	}

	h.sink.Emit(event)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{sink: h.sink, minLevel: h.minLevel, attrs: merged}
}

// WithGroup is accepted but not nested; group structure flattens into
// plain field keys the way chat output renders best.
func (h *Handler) WithGroup(string) slog.Handler { return h }

// addAttr folds one attribute into the event, routing error values to
// the event's error slot.
func addAttr(event *core.Event, fields map[string]any, a slog.Attr) {
	if a.Key == "err" || a.Key == "error" {
		if err, ok := a.Value.Any().(error); ok && event.Err == nil {
			event.Err = err
			return
		}
	}
	fields[a.Key] = a.Value.Any()
}

func levelFromSlog(l slog.Level) core.Level {
	switch {
	case l < slog.LevelInfo:
		return core.LevelDebug
	case l < slog.LevelWarn:
		return core.LevelInfo
	case l < slog.LevelError:
		return core.LevelWarn
	default:
		return core.LevelError
	}
}
