package logging

import (
	"context"
	"log/slog"
)

// CapturingHandler records log entries into a LogCollector and forwards records
// to the wrapped handler. Capture and output filter levels independently.
type CapturingHandler struct {
	next      slog.Handler
	collector *LogCollector
	component string
	level     slog.Level
	// prefix is the dotted group path applied to attribute keys.
	prefix string
	attrs  []slog.Attr
}

// NewCapturingHandler creates a handler that captures records at or above level
// under component.
func NewCapturingHandler(next slog.Handler, collector *LogCollector, component string, level slog.Level) *CapturingHandler {
	return &CapturingHandler{
		next:      next,
		collector: collector,
		component: component,
		level:     level,
	}
}

func (h *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level || h.next.Enabled(ctx, level)
}

func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		entry := LogEntry{
			Time:       r.Time,
			Level:      r.Level.String(),
			Message:    r.Message,
			Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
		}
		for _, a := range h.attrs {
			entry.Attributes[a.Key] = resolveValue(a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			entry.Attributes[h.prefix+a.Key] = resolveValue(a.Value)
			return true
		})
		h.collector.AddLog(h.component, entry)
	}

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &clone
}

func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.prefix = h.prefix + name + "."
	return &clone
}

// resolveValue converts v to something encoding/json can render.
func resolveValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = resolveValue(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		if s, ok := v.Any().(interface{ String() string }); ok {
			return s.String()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
