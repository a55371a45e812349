package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/codepathfinder/repodocs/internal/ingest"
	"github.com/codepathfinder/repodocs/internal/log"
	"github.com/codepathfinder/repodocs/internal/retrieve"
)

// maxRequestBody caps request body size for all repo endpoints.
const maxRequestBody = 1 << 20 // 1 MiB

// Syncer runs a repository documentation sync.
type Syncer interface {
	SyncRepo(ctx context.Context, repoID uuid.UUID, fullName string, clean bool) (ingest.Result, error)
}

// Retriever answers questions against a repository's stored chunks.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieve.Query) (retrieve.Result, error)
}

// Clearer removes a repository's stored chunks.
type Clearer interface {
	Clear(ctx context.Context, repoID uuid.UUID) error
}

// ReposHandler handles ingestion and retrieval endpoints.
type ReposHandler struct {
	syncer    Syncer
	retriever Retriever
	clearer   Clearer
	logger    log.Logger

	// background tracks detached ingestion goroutines so tests and shutdown
	// can wait for them.
	background sync.WaitGroup
}

// NewReposHandler creates a new repos handler.
func NewReposHandler(syncer Syncer, retriever Retriever, clearer Clearer, logger log.Logger) *ReposHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ReposHandler{
		syncer:    syncer,
		retriever: retriever,
		clearer:   clearer,
		logger:    logger,
	}
}

// RegisterRoutes registers repo routes on the given mux.
func (h *ReposHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/repos/{id}/ingest", h.ingest)
	mux.HandleFunc("POST /api/repos/{id}/context", h.retrieveContext)
	mux.HandleFunc("DELETE /api/repos/{id}/chunks", h.clearChunks)
}

// Wait blocks until all background ingestions have finished.
func (h *ReposHandler) Wait() {
	h.background.Wait()
}

// ingestRequest is the body of POST /api/repos/{id}/ingest.
type ingestRequest struct {
	RepoFullName string `json:"repo_full_name"`
	Clean        bool   `json:"clean"`
}

func (r ingestRequest) Validate() error {
	parts := strings.Split(r.RepoFullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("repo_full_name must be owner/name, got %q", r.RepoFullName)
	}
	return nil
}

// ingestResponse is the body of a completed synchronous ingestion.
type ingestResponse struct {
	ChunksStored int `json:"chunks_stored"`
}

// ingest triggers a repository documentation sync.
//
// By default the sync runs in the background and the handler answers 202
// immediately; a failed background sync is logged, never reported to the
// caller. With ?wait=true the sync runs inline and the handler answers 200
// with the chunk count.
func (h *ReposHandler) ingest(w http.ResponseWriter, r *http.Request) {
	repoID, ok := repoIDFromPath(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := h.syncer.SyncRepo(r.Context(), repoID, req.RepoFullName, req.Clean)
		if err != nil {
			h.logger.Error("ingestion failed", "repo", req.RepoFullName, "error", err)
			writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, ingestResponse{ChunksStored: result.ChunksStored})
		return
	}

	// Detach from the request context so the sync survives the response.
	bgCtx := context.WithoutCancel(r.Context())
	h.background.Add(1)
	go func() {
		defer h.background.Done()
		result, err := h.syncer.SyncRepo(bgCtx, repoID, req.RepoFullName, req.Clean)
		if err != nil {
			h.logger.Error("background ingestion failed",
				"repo", req.RepoFullName, "repo_id", repoID, "error", err)
			return
		}
		h.logger.Info("background ingestion finished",
			"repo", req.RepoFullName, "chunks_stored", result.ChunksStored)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// contextRequest is the body of POST /api/repos/{id}/context.
type contextRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// chunkResponse is one retrieved chunk with source attribution.
type chunkResponse struct {
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

// contextResponse is the retrieval result.
type contextResponse struct {
	Chunks      []chunkResponse `json:"chunks"`
	ContextText string          `json:"context_text"`
	Empty       bool            `json:"empty"`
}

// retrieveContext answers a question with relevant documentation chunks.
func (h *ReposHandler) retrieveContext(w http.ResponseWriter, r *http.Request) {
	repoID, ok := repoIDFromPath(w, r)
	if !ok {
		return
	}

	var req contextRequest
	if !decodeBody(w, r, &req) {
		return
	}

	query := retrieve.Query{RepoID: repoID, Title: req.Title, Body: req.Body}
	if err := query.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.retriever.Retrieve(r.Context(), query)
	if err != nil {
		h.logger.Error("retrieval failed", "repo_id", repoID, "error", err)
		writeError(w, http.StatusInternalServerError, "retrieval_failed", err.Error())
		return
	}

	resp := contextResponse{
		Chunks:      make([]chunkResponse, 0, len(result.Chunks)),
		ContextText: result.ContextText,
		Empty:       result.Empty,
	}
	for _, chunk := range result.Chunks {
		resp.Chunks = append(resp.Chunks, chunkResponse{
			FilePath:   chunk.FilePath,
			ChunkIndex: chunk.ChunkIndex,
			Content:    chunk.Content,
			Similarity: chunk.Similarity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// clearChunks removes all stored chunks for a repository.
func (h *ReposHandler) clearChunks(w http.ResponseWriter, r *http.Request) {
	repoID, ok := repoIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.clearer.Clear(r.Context(), repoID); err != nil {
		h.logger.Error("clearing chunks failed", "repo_id", repoID, "error", err)
		writeError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// repoIDFromPath parses the {id} path segment. On failure it writes a 400
// response and returns ok=false.
func repoIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	repoID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_repo_id", "repo id must be a UUID")
		return uuid.Nil, false
	}
	return repoID, true
}

// decodeBody decodes a JSON request body. On failure it writes a 400 response
// and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}
