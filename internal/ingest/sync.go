package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/codepathfinder/repodocs/internal/github"
	"github.com/codepathfinder/repodocs/internal/log"
)

// DefaultMaxDocsFiles caps how many markdown files are taken from the docs
// directory during a sync.
const DefaultMaxDocsFiles = 10

// docsDir is the single documentation directory scanned (top level only).
const docsDir = "docs"

// wellKnownFiles are the root files every sync attempts to fetch.
var wellKnownFiles = []string{
	"README.md",
	"CONTRIBUTING.md",
	"CODE_OF_CONDUCT.md",
}

// DocSource supplies repository files from a source control host.
// Absence of a file or directory is a normal outcome, not an error.
type DocSource interface {
	GetFileContent(ctx context.Context, owner, repo, path string) (content string, found bool, err error)
	ListDirectory(ctx context.Context, owner, repo, path string) ([]github.Entry, error)
}

// Ingestor is the pipeline surface the syncer drives.
type Ingestor interface {
	Ingest(ctx context.Context, req Request) (Result, error)
}

// Syncer gathers a repository's documentation from a DocSource and feeds it
// through the ingestion pipeline.
type Syncer struct {
	source      DocSource
	ingestor    Ingestor
	maxDocFiles int
	logger      log.Logger
}

// NewSyncer creates a Syncer. A non-positive maxDocFiles falls back to
// DefaultMaxDocsFiles; a nil logger falls back to a no-op logger.
func NewSyncer(source DocSource, ingestor Ingestor, maxDocFiles int, logger log.Logger) *Syncer {
	if maxDocFiles <= 0 {
		maxDocFiles = DefaultMaxDocsFiles
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Syncer{
		source:      source,
		ingestor:    ingestor,
		maxDocFiles: maxDocFiles,
		logger:      logger,
	}
}

// fetchOutcome is one file's fetch result. err and found are independent:
// a missing file is found=false with a nil err.
type fetchOutcome struct {
	path    string
	content string
	found   bool
	err     error
}

// SyncRepo fetches the repository's well-known documentation files plus up to
// maxDocFiles markdown files from the docs directory, then ingests whatever
// was found.
//
// Fetches run concurrently and each failure is isolated: a failing file is
// logged and skipped, never cancelling its siblings. Finding no documentation
// at all is a benign zero-chunk result, not an error.
func (s *Syncer) SyncRepo(ctx context.Context, repoID uuid.UUID, fullName string, clean bool) (Result, error) {
	if repoID == uuid.Nil {
		return Result{}, fmt.Errorf("repo id is required")
	}
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return Result{}, err
	}

	paths := s.candidatePaths(ctx, owner, name)

	outcomes := make([]fetchOutcome, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content, found, err := s.source.GetFileContent(ctx, owner, name, path)
			outcomes[i] = fetchOutcome{path: path, content: content, found: found, err: err}
		}()
	}
	wg.Wait()

	var docs []Document
	for _, out := range outcomes {
		switch {
		case out.err != nil:
			s.logger.Warn("failed to fetch documentation file, skipping",
				"repo", fullName, "path", out.path, "error", out.err)
		case !out.found:
			s.logger.Debug("documentation file not present", "repo", fullName, "path", out.path)
		case strings.TrimSpace(out.content) == "":
			s.logger.Debug("documentation file empty, skipping", "repo", fullName, "path", out.path)
		default:
			docs = append(docs, Document{FilePath: out.path, Content: out.content})
		}
	}

	if len(docs) == 0 {
		s.logger.Info("no documentation found, nothing to ingest", "repo", fullName)
		return Result{ChunksStored: 0}, nil
	}

	return s.ingestor.Ingest(ctx, Request{
		RepoID:       repoID,
		RepoFullName: fullName,
		Documents:    docs,
		Clean:        clean,
	})
}

// candidatePaths returns the well-known root files plus markdown files from
// the docs directory. A failing directory listing degrades to the well-known
// set rather than failing the sync.
func (s *Syncer) candidatePaths(ctx context.Context, owner, name string) []string {
	paths := make([]string, 0, len(wellKnownFiles)+s.maxDocFiles)
	paths = append(paths, wellKnownFiles...)

	entries, err := s.source.ListDirectory(ctx, owner, name, docsDir)
	if err != nil {
		s.logger.Warn("failed to list docs directory, continuing with well-known files",
			"repo", owner+"/"+name, "error", err)
		return paths
	}

	added := 0
	for _, entry := range entries {
		if added >= s.maxDocFiles {
			break
		}
		if entry.Type != "file" || !strings.HasSuffix(strings.ToLower(entry.Name), ".md") {
			continue
		}
		paths = append(paths, entry.Path)
		added++
	}
	return paths
}

// splitFullName splits "owner/name" into its parts.
func splitFullName(fullName string) (owner, name string, err error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repo full name must be owner/name, got %q", fullName)
	}
	return parts[0], parts[1], nil
}
