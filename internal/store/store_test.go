package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/codepathfinder/repodocs/internal/log"
)

// Validation rejects bad rows before any database round trip, so these tests
// run against a Store with no pool.

func validRow(repoID uuid.UUID, dim int) ChunkRow {
	return ChunkRow{
		RepoID:       repoID,
		RepoFullName: "golang/go",
		FilePath:     "README.md",
		ChunkIndex:   0,
		Content:      "Go is an open source programming language.",
		TokenCount:   11,
		Embedding:    make([]float32, dim),
	}
}

func TestUpsert_ValidationRejectsBeforeWrite(t *testing.T) {
	s := New(nil, 3, DefaultUpsertBatchSize, log.NewNop())
	repoID := uuid.New()

	tests := []struct {
		name    string
		mutate  func(*ChunkRow)
		wantErr string
	}{
		{
			name:    "nil repo id",
			mutate:  func(r *ChunkRow) { r.RepoID = uuid.Nil },
			wantErr: "repo id",
		},
		{
			name:    "empty file path",
			mutate:  func(r *ChunkRow) { r.FilePath = "" },
			wantErr: "file path",
		},
		{
			name:    "negative chunk index",
			mutate:  func(r *ChunkRow) { r.ChunkIndex = -1 },
			wantErr: "chunk index",
		},
		{
			name:    "whitespace content",
			mutate:  func(r *ChunkRow) { r.Content = "  \n\t " },
			wantErr: "empty content",
		},
		{
			name:    "dimension mismatch",
			mutate:  func(r *ChunkRow) { r.Embedding = make([]float32, 5) },
			wantErr: "dimension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow(repoID, 3)
			tt.mutate(&row)

			written, err := s.Upsert(context.Background(), []ChunkRow{row})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
			if written != 0 {
				t.Errorf("written = %d, want 0", written)
			}
		})
	}
}

func TestUpsert_EmptyInputIsNoop(t *testing.T) {
	s := New(nil, 3, DefaultUpsertBatchSize, log.NewNop())

	written, err := s.Upsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upsert(nil) failed: %v", err)
	}
	if written != 0 {
		t.Errorf("written = %d, want 0", written)
	}
}

func TestSimilaritySearch_InputValidation(t *testing.T) {
	s := New(nil, 3, DefaultUpsertBatchSize, log.NewNop())
	ctx := context.Background()

	if _, err := s.SimilaritySearch(ctx, uuid.Nil, make([]float32, 3), 5); err == nil {
		t.Error("expected error for nil repo id")
	}
	if _, err := s.SimilaritySearch(ctx, uuid.New(), make([]float32, 7), 5); err == nil {
		t.Error("expected error for dimension mismatch")
	}
	if _, err := s.SimilaritySearch(ctx, uuid.New(), make([]float32, 3), 0); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestDeleteByRepo_RequiresRepoID(t *testing.T) {
	s := New(nil, 3, DefaultUpsertBatchSize, log.NewNop())

	if err := s.DeleteByRepo(context.Background(), uuid.Nil); err == nil {
		t.Error("expected error for nil repo id")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, 0, 0, nil)
	if s.dimension != DefaultDimension {
		t.Errorf("dimension = %d, want %d", s.dimension, DefaultDimension)
	}
	if s.batchSize != DefaultUpsertBatchSize {
		t.Errorf("batchSize = %d, want %d", s.batchSize, DefaultUpsertBatchSize)
	}
	if s.logger == nil {
		t.Error("logger should default to no-op")
	}
}
