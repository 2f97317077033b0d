package observe

import (
	"context"
	"errors"
	"testing"
)

type recordingExporter struct {
	spans []Span
}

func (r *recordingExporter) Export(ctx context.Context, spans []Span) error {
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *recordingExporter) Name() string { return "recording" }

func TestTracingObserverExportsOnRootSpanEnd(t *testing.T) {
	exp := &recordingExporter{}
	obs := NewObserver(ObserverConfig{Exporters: []SpanExporter{exp}})

	ctx, span := obs.StartSpan(context.Background(), SpanTypeInsert, "insert", map[string]any{"table": "documents"})
	if ctx == nil || span == nil {
		t.Fatal("expected non-nil context and span")
	}
	span.End(nil)

	if len(exp.spans) != 1 {
		t.Fatalf("expected 1 exported span, got %d", len(exp.spans))
	}
	if exp.spans[0].Status != SpanStatusOK {
		t.Errorf("expected status ok, got %s", exp.spans[0].Status)
	}
}

func TestTracingObserverNestedSpansExportTogether(t *testing.T) {
	exp := &recordingExporter{}
	obs := NewObserver(ObserverConfig{Exporters: []SpanExporter{exp}})

	rootCtx, root := obs.StartSpan(context.Background(), SpanTypeMMRSearch, "mmr_search", nil)
	_, child := obs.StartSpan(rootCtx, SpanTypeSimilaritySearch, "similarity_search", nil)
	child.End(nil)

	if len(exp.spans) != 0 {
		t.Fatalf("expected no export before root ends, got %d", len(exp.spans))
	}

	root.End(nil)
	if len(exp.spans) != 2 {
		t.Fatalf("expected 2 spans exported once root ends, got %d", len(exp.spans))
	}
}

func TestActiveSpanEndRecordsError(t *testing.T) {
	exp := &recordingExporter{}
	obs := NewObserver(ObserverConfig{Exporters: []SpanExporter{exp}})

	_, span := obs.StartSpan(context.Background(), SpanTypeBuildIndex, "build_index", nil)
	span.End(errors.New("boom"))

	if exp.spans[0].Status != SpanStatusError {
		t.Errorf("expected status error, got %s", exp.spans[0].Status)
	}
	if exp.spans[0].Error != "boom" {
		t.Errorf("expected error message 'boom', got %q", exp.spans[0].Error)
	}
}

func TestActiveSpanEndNilIsSafe(t *testing.T) {
	var span *ActiveSpan
	span.End(nil) // must not panic
}

func TestNoOpObserverReturnsNilSpan(t *testing.T) {
	var o NoOpObserver
	ctx, span := o.StartSpan(context.Background(), SpanTypeDropIndex, "drop_index", nil)
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if span != nil {
		t.Fatal("expected nil span from NoOpObserver")
	}
	span.End(nil) // must not panic even though span is nil
}

func TestHashQueryIsDeterministicAndOpaque(t *testing.T) {
	a := HashQuery("what is the meaning of life")
	b := HashQuery("what is the meaning of life")
	if a != b {
		t.Errorf("expected deterministic hash, got %q != %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("expected 8-char hash, got %d chars", len(a))
	}
}
