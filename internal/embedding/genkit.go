package embedding

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// GenkitService adapts a Genkit ai.Embedder to the Service interface.
//
// Genkit returns embeddings in request order, so the index tag is simply the
// response position; the Client's realignment still runs as a contract check
// and protects against providers that reorder.
type GenkitService struct {
	embedder  ai.Embedder
	dimension int32
}

// NewGenkitService wraps a Genkit embedder. Every request asks the provider
// for vectors of the given dimension; gemini-embedding-001 emits 3072 values
// unless truncation is requested, which would never fit the vector schema.
func NewGenkitService(embedder ai.Embedder, dimension int) *GenkitService {
	return &GenkitService{embedder: embedder, dimension: int32(dimension)}
}

// EmbedBatch embeds all texts in a single Genkit request.
func (s *GenkitService) EmbedBatch(ctx context.Context, texts []string) ([]Indexed, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	dim := s.dimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("genkit embed: %w", err)
	}

	results := make([]Indexed, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		results[i] = Indexed{Index: i, Values: emb.Embedding}
	}
	return results, nil
}
