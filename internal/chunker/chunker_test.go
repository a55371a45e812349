package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_EmptyContent(t *testing.T) {
	c := New(DefaultTargetTokens, DefaultOverlapTokens)

	tests := []struct {
		name    string
		content string
	}{
		{"empty string", ""},
		{"whitespace only", "   \n\t  \n\n  "},
		{"windows newlines only", "\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Chunk(tt.content); len(got) != 0 {
				t.Errorf("Chunk(%q) = %d drafts, want 0", tt.content, len(got))
			}
		})
	}
}

func TestChunk_SingleParagraph(t *testing.T) {
	c := New(DefaultTargetTokens, DefaultOverlapTokens)

	drafts := c.Chunk("This project is a documentation search service.")
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].ChunkIndex != 0 {
		t.Errorf("ChunkIndex = %d, want 0", drafts[0].ChunkIndex)
	}
	if drafts[0].Content != "This project is a documentation search service." {
		t.Errorf("unexpected content: %q", drafts[0].Content)
	}
}

func TestChunk_TokenCountEstimate(t *testing.T) {
	c := New(DefaultTargetTokens, DefaultOverlapTokens)

	tests := []struct {
		content string
		want    int
	}{
		{"abcd", 1},     // exactly one token
		{"abcde", 2},    // 5 chars rounds up
		{"abcdefgh", 2}, // exactly two tokens
		{"x", 1},
	}

	for _, tt := range tests {
		drafts := c.Chunk(tt.content)
		if len(drafts) != 1 {
			t.Fatalf("Chunk(%q): expected 1 draft, got %d", tt.content, len(drafts))
		}
		if drafts[0].TokenCount != tt.want {
			t.Errorf("TokenCount(%q) = %d, want %d", tt.content, drafts[0].TokenCount, tt.want)
		}
	}
}

func TestChunk_SplitsOnBudgetWithContiguousIndices(t *testing.T) {
	// Small budget forces one chunk per paragraph.
	c := New(10, 0) // 40 char budget, no overlap

	para := strings.Repeat("word ", 8) // 40 chars each
	content := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	drafts := c.Chunk(content)
	if len(drafts) != 3 {
		t.Fatalf("expected 3 drafts, got %d", len(drafts))
	}
	for i, d := range drafts {
		if d.ChunkIndex != i {
			t.Errorf("draft %d has ChunkIndex %d", i, d.ChunkIndex)
		}
		if strings.TrimSpace(d.Content) == "" {
			t.Errorf("draft %d is empty", i)
		}
	}
}

func TestChunk_TailOverlapAppearsInNextChunk(t *testing.T) {
	c := New(25, 5) // 100 char budget, 20 char overlap

	first := "Install the binary with the package manager and verify the checksum before running it anywhere."
	second := "Configuration lives in a YAML file next to the binary and is reloaded on restart."
	drafts := c.Chunk(first + "\n\n" + second)

	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}

	tail := drafts[0].Content[len(drafts[0].Content)-20:]
	if !strings.Contains(drafts[1].Content, strings.TrimSpace(tail)) {
		t.Errorf("chunk 1 does not carry tail overlap %q: %q", tail, drafts[1].Content)
	}
	if !strings.Contains(drafts[1].Content, second) {
		t.Errorf("chunk 1 missing second paragraph: %q", drafts[1].Content)
	}
}

func TestChunk_OverlapKeepsMultibyteRunesIntact(t *testing.T) {
	c := New(DefaultTargetTokens, DefaultOverlapTokens)

	// Each paragraph is 700 three-byte runes (2100 bytes), so the overlap
	// window would land mid-rune if the tail were cut on a raw byte offset.
	para := strings.Repeat("文", 700)
	drafts := c.Chunk(para + "\n\n" + para)

	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
	for i, d := range drafts {
		if !utf8.ValidString(d.Content) {
			t.Errorf("chunk %d content is not valid UTF-8 (starts % x)", i, d.Content[:min(6, len(d.Content))])
		}
	}
	if r, _ := utf8.DecodeRuneInString(drafts[1].Content); r != '文' {
		t.Errorf("chunk 1 does not start on a rune boundary: got %q", r)
	}
}

func TestChunk_OversizedParagraphStaysWhole(t *testing.T) {
	c := New(10, 2) // 40 char budget

	oversized := strings.Repeat("a very long sentence without any blank lines ", 5)
	drafts := c.Chunk(oversized)

	if len(drafts) != 1 {
		t.Fatalf("oversized paragraph must become a single chunk, got %d", len(drafts))
	}
	if drafts[0].Content != strings.TrimSpace(oversized) {
		t.Errorf("oversized paragraph was altered")
	}
}

func TestChunk_DiscardsBlankParagraphs(t *testing.T) {
	c := New(DefaultTargetTokens, DefaultOverlapTokens)

	drafts := c.Chunk("first paragraph\n\n   \n\nsecond paragraph")
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	want := "first paragraph\n\nsecond paragraph"
	if drafts[0].Content != want {
		t.Errorf("content = %q, want %q", drafts[0].Content, want)
	}
}

func TestChunk_DefaultsApplied(t *testing.T) {
	c := New(0, -1)
	if c.targetChars != DefaultTargetTokens*charsPerToken {
		t.Errorf("targetChars = %d, want %d", c.targetChars, DefaultTargetTokens*charsPerToken)
	}
	if c.overlapChars != DefaultOverlapTokens*charsPerToken {
		t.Errorf("overlapChars = %d, want %d", c.overlapChars, DefaultOverlapTokens*charsPerToken)
	}
}
