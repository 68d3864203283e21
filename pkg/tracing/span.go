// Package tracing provides a lightweight span-based tracing system that
// propagates trace context through Go contexts. Spans form parent-child trees
// and are logged at debug level via slog when the root span ends.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Tracer creates spans. A disabled Tracer returns no-op spans, so callers
// never need to check.
type Tracer struct {
	enabled bool
	logger  *slog.Logger
}

func New(enabled bool) *Tracer {
	return &Tracer{
		enabled: enabled,
		logger:  slog.Default().With("component", "tracing"),
	}
}

// Span represents a timed operation within a trace.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any

	tracer *Tracer
	root   bool
	mu     sync.Mutex
}

// Start opens a span. If ctx already carries a span the new one becomes its
// child; otherwise it is a root span whose trace id is the request id.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	if t == nil || !t.enabled {
		return ctx, nil
	}
	span := &Span{
		Name:      name,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
		tracer:    t,
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = logger.RequestID(ctx)
		span.root = true
	}
	return context.WithValue(ctx, spanKey, span), span
}

// End records the span's duration. Ending a root span logs the whole tree.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
	if s.root {
		s.logRecursive(s.tracer.logger, 0)
	}
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) logRecursive(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", s.Duration.Milliseconds(),
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	l.Debug("span", attrs...)
	for _, child := range children {
		child.logRecursive(l, depth+1)
	}
}
