package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hupe1980/agentkernel/core"
)

// DefaultSource labels records that carry no component attribute.
const DefaultSource = "kernel"

// SinkHandler is a slog.Handler that forwards records to a core.LogSink.
// The "component" attribute becomes the entry source; the remaining
// attributes become the entry data.
type SinkHandler struct {
	sink   core.LogSink
	level  slog.Level
	attrs  []scopedAttr
	groups []string
}

// scopedAttr keeps the group prefix that was open when the attr was added.
type scopedAttr struct {
	prefix string
	attr   slog.Attr
}

var _ slog.Handler = (*SinkHandler)(nil)

// NewSinkHandler creates a handler emitting records at or above level.
func NewSinkHandler(sink core.LogSink, level LogLevel) *SinkHandler {
	return &SinkHandler{sink: sink, level: SlogLevel(level)}
}

func (h *SinkHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *SinkHandler) Handle(_ context.Context, r slog.Record) error {
	source := DefaultSource
	data := map[string]any{}

	add := func(prefix string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if a.Key == "component" && prefix == "" {
			source = a.Value.String()
			return
		}
		data[prefix+a.Key] = attrValue(a.Value)
	}

	for _, sa := range h.attrs {
		add(sa.prefix, sa.attr)
	}
	prefix := h.prefix()
	r.Attrs(func(a slog.Attr) bool {
		add(prefix, a)
		return true
	})

	entry := core.LogEntry{
		Timestamp: r.Time.UTC(),
		Level:     KernelLevel(r.Level),
		Source:    source,
		Message:   r.Message,
	}
	if len(data) > 0 {
		entry.Data = data
	}
	h.sink.Emit(entry)
	return nil
}

func (h *SinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]scopedAttr(nil), h.attrs...)
	prefix := h.prefix()
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, scopedAttr{prefix: prefix, attr: a})
	}
	return &nh
}

func (h *SinkHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.groups = append(append([]string(nil), h.groups...), name)
	return &nh
}

func (h *SinkHandler) prefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func attrValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindGroup:
		m := map[string]any{}
		for _, a := range v.Group() {
			m[a.Key] = attrValue(a.Value.Resolve())
		}
		return m
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return v.Any()
	}
}
