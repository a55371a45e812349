package retrieve

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/codepathfinder/repodocs/internal/store"
)

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestRetrieve_EmitsSpan(t *testing.T) {
	sr := withSpanRecorder(t)
	searchStore := &fakeSearchStore{
		results: []store.SearchResult{
			{FilePath: "README.md", ChunkIndex: 0, Content: "Install with make.", Similarity: 0.9},
		},
	}
	r := New(&fakeEmbedder{}, searchStore, nil)

	res, err := r.Retrieve(context.Background(), Query{RepoID: uuid.New(), Title: "how to install"})
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if res.Empty {
		t.Fatal("expected a match")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "retriever.retrieve" {
		t.Errorf("span name = %q, want %q", span.Name(), "retriever.retrieve")
	}

	matched, empty := int64(-1), true
	for _, attr := range span.Attributes() {
		switch attr.Key {
		case "chunks.matched":
			matched = attr.Value.AsInt64()
		case "result.empty":
			empty = attr.Value.AsBool()
		}
	}
	if matched != 1 {
		t.Errorf("chunks.matched attribute = %d, want 1", matched)
	}
	if empty {
		t.Error("result.empty attribute = true, want false")
	}
}
