package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/codepathfinder/repodocs/internal/chunker"
	"github.com/codepathfinder/repodocs/internal/store"
)

// fakeEmbedder records its input and returns one deterministic vector per text.
type fakeEmbedder struct {
	calls [][]string
	err   error
	// short drops the last vector to simulate a miscounting backend.
	short bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, 0, len(texts))
	for i := range texts {
		vectors = append(vectors, []float32{float32(i), float32(len(texts[i]))})
	}
	if f.short && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

// fakeChunkStore records upserts and deletes in call order.
type fakeChunkStore struct {
	upserted  [][]store.ChunkRow
	deleted   []uuid.UUID
	callOrder []string

	upsertErr error
	deleteErr error
}

func (f *fakeChunkStore) Upsert(_ context.Context, rows []store.ChunkRow) (int, error) {
	f.callOrder = append(f.callOrder, "upsert")
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, rows)
	return len(rows), nil
}

func (f *fakeChunkStore) DeleteByRepo(_ context.Context, repoID uuid.UUID) error {
	f.callOrder = append(f.callOrder, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, repoID)
	return nil
}

func validRequest() Request {
	return Request{
		RepoID:       uuid.New(),
		RepoFullName: "golang/go",
		Documents: []Document{
			{FilePath: "README.md", Content: "First paragraph.\n\nSecond paragraph."},
			{FilePath: "docs/setup.md", Content: "Setup instructions."},
		},
	}
}

func TestIngest_ChunksEmbedsAndStores(t *testing.T) {
	embedder := &fakeEmbedder{}
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), embedder, chunkStore, nil)

	req := validRequest()
	result, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if len(chunkStore.upserted) != 1 {
		t.Fatalf("expected one upsert call, got %d", len(chunkStore.upserted))
	}
	rows := chunkStore.upserted[0]
	if result.ChunksStored != len(rows) {
		t.Errorf("ChunksStored = %d, want %d", result.ChunksStored, len(rows))
	}
	if len(rows) < 2 {
		t.Fatalf("expected chunks from both documents, got %d rows", len(rows))
	}

	// Vectors are zipped by position onto the rows the texts came from.
	if len(embedder.calls) != 1 {
		t.Fatalf("expected one embed call, got %d", len(embedder.calls))
	}
	for i, row := range rows {
		if row.RepoID != req.RepoID {
			t.Errorf("row %d: repo id %s, want %s", i, row.RepoID, req.RepoID)
		}
		if embedder.calls[0][i] != row.Content {
			t.Errorf("row %d: embedded text does not match row content", i)
		}
		if len(row.Embedding) == 0 {
			t.Errorf("row %d: missing embedding", i)
		}
	}

	// Chunk indices restart per file.
	byFile := map[string][]int{}
	for _, row := range rows {
		byFile[row.FilePath] = append(byFile[row.FilePath], row.ChunkIndex)
	}
	for path, indices := range byFile {
		for i, idx := range indices {
			if idx != i {
				t.Errorf("file %s: chunk index %d at position %d", path, idx, i)
			}
		}
	}
}

func TestIngest_CleanDeletesBeforeStoring(t *testing.T) {
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), &fakeEmbedder{}, chunkStore, nil)

	req := validRequest()
	req.Clean = true
	if _, err := p.Ingest(context.Background(), req); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if len(chunkStore.callOrder) != 2 || chunkStore.callOrder[0] != "delete" || chunkStore.callOrder[1] != "upsert" {
		t.Errorf("call order = %v, want [delete upsert]", chunkStore.callOrder)
	}
	if len(chunkStore.deleted) != 1 || chunkStore.deleted[0] != req.RepoID {
		t.Errorf("deleted = %v, want [%s]", chunkStore.deleted, req.RepoID)
	}
}

func TestIngest_EmptyDocumentsSkipEmbeddingAndStorage(t *testing.T) {
	embedder := &fakeEmbedder{}
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), embedder, chunkStore, nil)

	req := validRequest()
	req.Documents = []Document{
		{FilePath: "README.md", Content: "   \n\n  "},
		{FilePath: "EMPTY.md", Content: ""},
	}

	result, err := p.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if result.ChunksStored != 0 {
		t.Errorf("ChunksStored = %d, want 0", result.ChunksStored)
	}
	if len(embedder.calls) != 0 {
		t.Error("embedder must not be called when no chunks are produced")
	}
	if len(chunkStore.callOrder) != 0 {
		t.Errorf("store must not be touched, got calls %v", chunkStore.callOrder)
	}
}

func TestIngest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"nil repo id", func(r *Request) { r.RepoID = uuid.Nil }},
		{"empty full name", func(r *Request) { r.RepoFullName = "  " }},
		{"no documents", func(r *Request) { r.Documents = nil }},
		{"document without path", func(r *Request) { r.Documents[0].FilePath = "" }},
	}

	p := NewPipeline(chunker.New(0, 0), &fakeEmbedder{}, &fakeChunkStore{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := p.Ingest(context.Background(), req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIngest_EmbeddingFailureAbortsStorage(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), embedder, chunkStore, nil)

	req := validRequest()
	_, err := p.Ingest(context.Background(), req)
	if err == nil {
		t.Fatal("expected embedding error to propagate")
	}
	if !strings.Contains(err.Error(), "embedding chunks for repo") {
		t.Errorf("error %q lacks stage context", err)
	}
	if !strings.Contains(err.Error(), req.RepoID.String()) {
		t.Errorf("error %q lacks repo id", err)
	}
	if len(chunkStore.upserted) != 0 {
		t.Error("nothing must be stored after an embedding failure")
	}
}

func TestIngest_VectorCountMismatchFails(t *testing.T) {
	embedder := &fakeEmbedder{short: true}
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), embedder, chunkStore, nil)

	_, err := p.Ingest(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
	if !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("error %q does not mention the mismatch", err)
	}
	if len(chunkStore.upserted) != 0 {
		t.Error("nothing must be stored on a count mismatch")
	}
}

func TestIngest_StoreFailurePropagates(t *testing.T) {
	chunkStore := &fakeChunkStore{upsertErr: errors.New("connection reset")}
	p := NewPipeline(chunker.New(0, 0), &fakeEmbedder{}, chunkStore, nil)

	_, err := p.Ingest(context.Background(), validRequest())
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if !strings.Contains(err.Error(), "storing chunks for repo") {
		t.Errorf("error %q lacks stage context", err)
	}
}

func TestClear(t *testing.T) {
	chunkStore := &fakeChunkStore{}
	p := NewPipeline(chunker.New(0, 0), &fakeEmbedder{}, chunkStore, nil)

	repoID := uuid.New()
	if err := p.Clear(context.Background(), repoID); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if len(chunkStore.deleted) != 1 || chunkStore.deleted[0] != repoID {
		t.Errorf("deleted = %v, want [%s]", chunkStore.deleted, repoID)
	}

	if err := p.Clear(context.Background(), uuid.Nil); err == nil {
		t.Error("expected error for nil repo id")
	}
}
