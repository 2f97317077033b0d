// Package observe provides span/trace observability for the store's query
// pipeline, independent of any particular exporter backend.
package observe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

// SpanType identifies the store operation being traced.
type SpanType string

const (
	SpanTypeEnsureTable      SpanType = "ensure_table"
	SpanTypeInsert           SpanType = "insert"
	SpanTypeSimilaritySearch SpanType = "similarity_search"
	SpanTypeMMRSearch        SpanType = "mmr_search"
	SpanTypeBuildIndex       SpanType = "build_index"
	SpanTypeDropIndex        SpanType = "drop_index"
)

// Span represents a traced operation.
type Span struct {
	// ID is the unique span identifier.
	ID string
	// TraceID links spans in the same trace.
	TraceID string
	// ParentID is the parent span ID (empty for root).
	ParentID string
	// Type identifies the operation type.
	Type SpanType
	// Name is the human-readable span name.
	Name string
	// StartTime is when the span started.
	StartTime time.Time
	// EndTime is when the span ended.
	EndTime time.Time
	// Attributes are key-value pairs for this span.
	Attributes map[string]any
	// Status indicates success or failure.
	Status SpanStatus
	// Error contains error details if Status is Error.
	Error string
}

// SpanStatus indicates the outcome of a span.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanExporter exports spans to an observability backend.
type SpanExporter interface {
	// Export sends spans to the backend.
	Export(ctx context.Context, spans []Span) error
	// Name returns the exporter name.
	Name() string
}

// Observer receives span start/end events for a store's operations. Store
// calls StartSpan at the beginning of a public operation and End on the
// returned handle when it completes.
type Observer interface {
	StartSpan(ctx context.Context, typ SpanType, name string, attrs map[string]any) (context.Context, *ActiveSpan)
}

// ActiveSpan is a span in progress.
type ActiveSpan struct {
	span     *Span
	observer *TracingObserver
}

// End finalizes the span, recording err if non-nil, and exports the trace
// once its root span completes.
func (a *ActiveSpan) End(err error) {
	if a == nil {
		return
	}
	a.span.EndTime = time.Now()
	if err != nil {
		a.span.Status = SpanStatusError
		a.span.Error = err.Error()
	}
	if a.observer != nil {
		a.observer.finish(a.span)
	}
}

// TracingObserver implements Observer with span buffering and export.
type TracingObserver struct {
	mu        sync.Mutex
	exporters []SpanExporter
	logger    *slog.Logger
	spans     map[string]*Span
	traces    map[string][]string
}

// ObserverConfig configures a TracingObserver.
type ObserverConfig struct {
	// Exporters to send spans to.
	Exporters []SpanExporter
	// Logger for observer errors.
	Logger *slog.Logger
}

// NewObserver creates a new TracingObserver.
func NewObserver(cfg ObserverConfig) *TracingObserver {
	return &TracingObserver{
		exporters: cfg.Exporters,
		logger:    cfg.Logger,
		spans:     make(map[string]*Span),
		traces:    make(map[string][]string),
	}
}

// contextKey is used to store span context.
type contextKey struct{}

// SpanContext holds the current span information in context.
type SpanContext struct {
	TraceID  string
	SpanID   string
	ParentID string
}

// FromContext extracts SpanContext from context.
func FromContext(ctx context.Context) *SpanContext {
	if sc, ok := ctx.Value(contextKey{}).(*SpanContext); ok {
		return sc
	}
	return nil
}

// ToContext stores SpanContext in context.
func ToContext(ctx context.Context, sc *SpanContext) context.Context {
	return context.WithValue(ctx, contextKey{}, sc)
}

// StartSpan implements Observer.
func (o *TracingObserver) StartSpan(ctx context.Context, typ SpanType, name string, attrs map[string]any) (context.Context, *ActiveSpan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	spanID := generateID()
	traceID := spanID
	parentID := ""
	if sc := FromContext(ctx); sc != nil {
		traceID = sc.TraceID
		parentID = sc.SpanID
	}

	span := &Span{
		ID:         spanID,
		TraceID:    traceID,
		ParentID:   parentID,
		Type:       typ,
		Name:       name,
		StartTime:  time.Now(),
		Attributes: attrs,
		Status:     SpanStatusOK,
	}

	o.spans[spanID] = span
	o.traces[traceID] = append(o.traces[traceID], spanID)

	newCtx := ToContext(ctx, &SpanContext{TraceID: traceID, SpanID: spanID, ParentID: parentID})
	return newCtx, &ActiveSpan{span: span, observer: o}
}

func (o *TracingObserver) finish(span *Span) {
	o.mu.Lock()
	defer o.mu.Unlock()

	// A root span (no parent) closes and exports its whole trace; a child
	// span just stays recorded until its root closes.
	if span.ParentID != "" {
		return
	}
	o.exportTrace(context.Background(), span.TraceID)
}

func (o *TracingObserver) exportTrace(ctx context.Context, traceID string) {
	spanIDs, ok := o.traces[traceID]
	if !ok {
		return
	}

	spans := make([]Span, 0, len(spanIDs))
	for _, id := range spanIDs {
		if span, ok := o.spans[id]; ok {
			spans = append(spans, *span)
		}
	}

	for _, exporter := range o.exporters {
		if err := exporter.Export(ctx, spans); err != nil && o.logger != nil {
			o.logger.Error("failed to export spans",
				"exporter", exporter.Name(),
				"error", err,
			)
		}
	}

	for _, id := range spanIDs {
		delete(o.spans, id)
	}
	delete(o.traces, traceID)
}

// generateID generates a unique span ID.
func generateID() string {
	h := sha256.New()
	h.Write([]byte(time.Now().String()))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// hashQuery creates a hash of the query text for logging, so raw document
// content never lands in a span attribute or log line.
func hashQuery(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// NoOpObserver discards every span.
type NoOpObserver struct{}

// StartSpan implements Observer.
func (NoOpObserver) StartSpan(ctx context.Context, _ SpanType, _ string, _ map[string]any) (context.Context, *ActiveSpan) {
	return ctx, nil
}

var (
	_ Observer = (*TracingObserver)(nil)
	_ Observer = NoOpObserver{}
)

// HashQuery exposes hashQuery for callers building span attributes outside
// this package (the store's query-text attribute).
func HashQuery(text string) string { return hashQuery(text) }
