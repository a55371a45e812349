package ingest

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/codepathfinder/repodocs/internal/chunker"
)

// withSpanRecorder installs a recording tracer provider for the duration of
// the test and restores the previous global provider afterwards.
func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestIngest_EmitsSpan(t *testing.T) {
	sr := withSpanRecorder(t)
	p := NewPipeline(chunker.New(0, 0), &fakeEmbedder{}, &fakeChunkStore{}, nil)

	res, err := p.Ingest(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "pipeline.ingest" {
		t.Errorf("span name = %q, want %q", span.Name(), "pipeline.ingest")
	}

	var stored int64 = -1
	for _, attr := range span.Attributes() {
		if attr.Key == "chunks.stored" {
			stored = attr.Value.AsInt64()
		}
	}
	if stored != int64(res.ChunksStored) {
		t.Errorf("chunks.stored attribute = %d, want %d", stored, res.ChunksStored)
	}
}

func TestIngest_FailureMarksSpanError(t *testing.T) {
	sr := withSpanRecorder(t)
	embedder := &fakeEmbedder{err: errors.New("quota exhausted")}
	p := NewPipeline(chunker.New(0, 0), embedder, &fakeChunkStore{}, nil)

	if _, err := p.Ingest(context.Background(), validRequest()); err == nil {
		t.Fatal("expected embedding failure")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("span carries no recorded error event")
	}
}
