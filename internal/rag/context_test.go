package rag

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func doc(content string, meta map[string]string) Document {
	return Document{Content: content, Metadata: meta}
}

func TestFormatContextEmpty(t *testing.T) {
	t.Parallel()

	if got := FormatContext(nil, 6000); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty", got)
	}
	if got := FormatContext([]Document{}, 1); got != "" {
		t.Errorf("FormatContext([]) = %q, want empty", got)
	}
}

func TestFormatContextBlocks(t *testing.T) {
	t.Parallel()

	docs := []Document{
		doc("First passage.", map[string]string{"title": "Chapter 1"}),
		doc("Second passage.", map[string]string{"title": "Chapter 2"}),
	}
	got := FormatContext(docs, 6000)

	if !strings.Contains(got, "[1] Chapter 1\nFirst passage.") {
		t.Errorf("missing first block:\n%s", got)
	}
	if !strings.Contains(got, "[2] Chapter 2\nSecond passage.") {
		t.Errorf("missing second block:\n%s", got)
	}
	if strings.Index(got, "[1]") > strings.Index(got, "[2]") {
		t.Error("blocks emitted out of rank order")
	}
}

func TestFormatContextRespectsTotalBudget(t *testing.T) {
	t.Parallel()

	var docs []Document
	for i := 0; i < 10; i++ {
		docs = append(docs, doc(strings.Repeat("word ", 400), map[string]string{
			"title": fmt.Sprintf("Doc %d", i),
		}))
	}

	const maxChars = 2000
	got := FormatContext(docs, maxChars)
	if len(got) > maxChars {
		t.Errorf("context length %d exceeds budget %d", len(got), maxChars)
	}
	if !strings.Contains(got, "[1]") {
		t.Error("first-ranked document missing entirely")
	}
}

func TestFormatContextStripsEmbedPrefix(t *testing.T) {
	t.Parallel()

	docs := []Document{doc("passage: actual content here.", nil)}
	got := FormatContext(docs, 6000)
	if strings.Contains(got, "passage:") {
		t.Errorf("embedding prefix not stripped: %q", got)
	}
	if !strings.Contains(got, "actual content here.") {
		t.Errorf("content lost: %q", got)
	}
}

func TestFormatContextSkipsBlankDocs(t *testing.T) {
	t.Parallel()

	docs := []Document{
		doc("   \n ", map[string]string{"title": "Blank"}),
		doc("real content.", map[string]string{"title": "Real"}),
	}
	got := FormatContext(docs, 6000)
	if strings.Contains(got, "Blank") {
		t.Errorf("blank document emitted: %q", got)
	}
	if !strings.Contains(got, "real content.") {
		t.Errorf("real document missing: %q", got)
	}
}

func TestFormatContextTitleFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta map[string]string
		want string
	}{
		{"title wins", map[string]string{"title": "T", "source": "S"}, "[1] T"},
		{"source next", map[string]string{"source": "S", "chunk_id": "C"}, "[1] S"},
		{"chunk id next", map[string]string{"chunk_id": "C"}, "[1] C"},
		{"placeholder last", nil, "[1] doc_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FormatContext([]Document{doc("content.", tt.meta)}, 6000)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("got %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestTruncateAtBoundary(t *testing.T) {
	t.Parallel()

	t.Run("fits untouched", func(t *testing.T) {
		t.Parallel()
		if got := truncateAtBoundary("short.", 100); got != "short." {
			t.Errorf("got %q", got)
		}
	})

	t.Run("cuts at sentence end", func(t *testing.T) {
		t.Parallel()
		content := strings.Repeat("x", 80) + ". " + strings.Repeat("y", 80)
		got := truncateAtBoundary(content, 100)
		if !strings.HasSuffix(got, ".") {
			t.Errorf("expected sentence-boundary cut, got %q", got)
		}
		if len(got) > 100 {
			t.Errorf("length %d > 100", len(got))
		}
	})

	t.Run("early boundary falls back to hard cut", func(t *testing.T) {
		t.Parallel()
		// The only sentence end sits at 10% of the budget, below the 70%
		// floor, so the cut is hard and marked.
		content := "Short. " + strings.Repeat("z", 200)
		got := truncateAtBoundary(content, 100)
		if !strings.HasSuffix(got, "…") {
			t.Errorf("expected ellipsis marker, got %q", got)
		}
	})

	t.Run("hard cut lands on a rune boundary", func(t *testing.T) {
		t.Parallel()
		// Cyrillic content: every rune is two bytes, so an odd byte limit
		// would land mid-rune without the boundary backoff.
		content := strings.Repeat("п", 400)
		got := truncateAtBoundary(content, 101)
		if !utf8.ValidString(got) {
			t.Errorf("truncated content is not valid UTF-8: %q", got)
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("expected ellipsis marker, got %q", got)
		}
		if trimmed := strings.TrimSuffix(got, "…"); len(trimmed) > 101 {
			t.Errorf("content length %d over limit", len(trimmed))
		}
	})

	t.Run("line break is a boundary", func(t *testing.T) {
		t.Parallel()
		content := strings.Repeat("a", 90) + "\n" + strings.Repeat("b", 90)
		got := truncateAtBoundary(content, 100)
		if strings.Contains(got, "b") {
			t.Errorf("cut did not respect line boundary: %q", got)
		}
	})
}
