// Package chunker splits repository documentation into bounded, overlapping
// text segments suitable for embedding.
//
// Documents are split on blank-line paragraph boundaries and greedily packed
// into chunks up to a character budget derived from a token target. When a
// chunk closes, the tail of its content seeds the next chunk so that meaning
// straddling a boundary survives similarity search.
//
// Token counts are estimated from character length (4 chars per token). The
// estimate feeds sizing heuristics only; nothing depends on it for
// correctness, so a real tokenizer is deliberately not a dependency.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultTargetTokens is the soft upper bound for a chunk, in estimated tokens.
	DefaultTargetTokens = 400

	// DefaultOverlapTokens is the tail overlap carried into the next chunk.
	DefaultOverlapTokens = 50

	// charsPerToken is the character-to-token approximation used throughout.
	charsPerToken = 4
)

// paragraphSplit matches runs of two or more newlines, i.e. blank-line
// paragraph boundaries. Windows line endings are normalized before splitting.
var paragraphSplit = regexp.MustCompile(`\n{2,}`)

// Draft is a chunk before embedding: content plus its position within the
// source file and an estimated token count.
type Draft struct {
	Content    string
	ChunkIndex int
	TokenCount int
}

// Chunker splits document content into overlapping drafts.
// The zero value is not usable; construct with New.
type Chunker struct {
	targetChars  int
	overlapChars int
}

// New creates a Chunker with the given token budgets. A non-positive target
// and a negative overlap fall back to the defaults; an overlap of zero is
// kept and disables overlap entirely.
func New(targetTokens, overlapTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = DefaultOverlapTokens
	}
	return &Chunker{
		targetChars:  targetTokens * charsPerToken,
		overlapChars: overlapTokens * charsPerToken,
	}
}

// Chunk splits content into ordered drafts with per-file indices starting at 0.
// Empty or whitespace-only content yields no drafts.
//
// A single paragraph longer than the target budget becomes its own oversized
// chunk rather than being split mid-paragraph; keeping paragraphs whole is an
// intentional trade-off.
func (c *Chunker) Chunk(content string) []Draft {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")

	var paragraphs []string
	for _, p := range paragraphSplit.Split(content, -1) {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var drafts []Draft
	current := ""

	emit := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		drafts = append(drafts, Draft{
			Content:    text,
			ChunkIndex: len(drafts),
			TokenCount: estimateTokens(text),
		})
	}

	for _, para := range paragraphs {
		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}

		if len(candidate) > c.targetChars && current != "" {
			emit(current)
			current = c.tailOverlap(strings.TrimSpace(current)) + para
			continue
		}
		current = candidate
	}

	emit(current)

	return drafts
}

// tailOverlap returns roughly the last overlapChars bytes of a closed chunk,
// followed by a paragraph separator, to seed the next chunk. The cut always
// lands on a rune boundary so the overlap never starts with continuation
// bytes of a multibyte character.
func (c *Chunker) tailOverlap(closed string) string {
	if c.overlapChars == 0 || closed == "" {
		return ""
	}
	if len(closed) > c.overlapChars {
		cut := len(closed) - c.overlapChars
		for cut < len(closed) && !utf8.RuneStart(closed[cut]) {
			cut++
		}
		closed = closed[cut:]
	}
	return closed + "\n\n"
}

// estimateTokens approximates the token count of text as ceil(len/4).
func estimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}
