package logging

import (
	"context"
	"io"
	"log/slog"
)

// TargetKey is the attribute naming the logging target of a logger.
const TargetKey = "target"

// TargetHandler filters records by the level configured for their target.
// The target comes from a "target" attribute added with Logger.With or on
// the record itself.
type TargetHandler struct {
	next   slog.Handler
	levels *Levels
	target string
}

// NewTargetHandler wraps next. next should accept every level down to
// LevelTrace; filtering happens here.
func NewTargetHandler(next slog.Handler, levels *Levels) *TargetHandler {
	return &TargetHandler{next: next, levels: levels}
}

// Enabled implements slog.Handler. Without a known target it admits the
// lowest configured level and Handle decides.
func (h *TargetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.target != "" {
		return level >= h.levels.Level(h.target) && h.next.Enabled(ctx, level)
	}
	return level >= h.levels.Min() && h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *TargetHandler) Handle(ctx context.Context, r slog.Record) error {
	target := h.target
	if target == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == TargetKey {
				target = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.levels.Level(target) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *TargetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	target := h.target
	for _, a := range attrs {
		if a.Key == TargetKey {
			target = a.Value.String()
		}
	}
	return &TargetHandler{next: h.next.WithAttrs(attrs), levels: h.levels, target: target}
}

// WithGroup implements slog.Handler.
func (h *TargetHandler) WithGroup(name string) slog.Handler {
	return &TargetHandler{next: h.next.WithGroup(name), levels: h.levels, target: h.target}
}

// New creates a logger writing text (or JSON) to w, filtered by the
// verbosity spec. It returns the parsed levels for the startup banner.
func New(w io.Writer, spec string, json bool) (*slog.Logger, *Levels, error) {
	entries, err := ParseVerbosity(spec)
	if err != nil {
		return nil, nil, err
	}
	levels := NewLevels(entries)

	opts := &slog.HandlerOptions{
		Level:       LevelTrace,
		ReplaceAttr: ReplaceLevelNames,
	}
	var base slog.Handler
	if json {
		base = slog.NewJSONHandler(w, opts)
	} else {
		base = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewTargetHandler(base, levels)), levels, nil
}

// ReplaceLevelNames renders LevelTrace as "TRACE".
func ReplaceLevelNames(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

var _ slog.Handler = (*TargetHandler)(nil)
