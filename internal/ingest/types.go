package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Document is one source file supplied for ingestion. Documents are
// transient; only their chunks are persisted.
type Document struct {
	FilePath string
	Content  string
}

// Request describes one ingestion call for a single repository.
type Request struct {
	RepoID       uuid.UUID
	RepoFullName string
	Documents    []Document

	// Clean wipes all previously stored chunks for the repository before
	// storing the new set. Without it, a shrinking chunk count can leave
	// orphaned higher-index chunks from a prior run.
	Clean bool
}

// Validate rejects malformed requests before any external call is made.
func (r Request) Validate() error {
	if r.RepoID == uuid.Nil {
		return fmt.Errorf("repo id is required")
	}
	if strings.TrimSpace(r.RepoFullName) == "" {
		return fmt.Errorf("repo full name is required")
	}
	if len(r.Documents) == 0 {
		return fmt.Errorf("at least one document is required")
	}
	for i, doc := range r.Documents {
		if strings.TrimSpace(doc.FilePath) == "" {
			return fmt.Errorf("document %d: file path is required", i)
		}
	}
	return nil
}

// Result reports what an ingestion call stored.
type Result struct {
	ChunksStored int
}
