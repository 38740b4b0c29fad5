package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultContextChars bounds the formatted context handed to the
	// answer prompt.
	DefaultContextChars = 6000

	// contextMargin is reserved for headers and separators when dividing
	// the budget between documents.
	contextMargin = 200

	// contextMaxDocs caps how many documents share the budget. Retrieval
	// may return more; documents past the budget are dropped.
	contextMaxDocs = 6

	// truncateFloor is the fraction of a document's budget below which a
	// sentence boundary is considered too early to cut at.
	truncateFloor = 0.7
)

// embedding prefixes conventionally attached for e5-style models; they
// are transport noise, not content.
var embedPrefixes = []string{"passage: ", "query: "}

// FormatContext renders ranked documents into a bounded context string
// for the answer prompt. Empty input yields an empty string, which the
// engine reads as "no context available".
//
// Each document gets a soft character budget derived from maxChars, the
// document count (capped) and a reserved margin; the first-ranked
// document also receives the integer-division remainder. Content beyond
// the budget is cut at the last sentence or line boundary, unless that
// boundary sits too early, in which case the cut is hard and marked
// with an ellipsis.
func FormatContext(docs []Document, maxChars int) string {
	if len(docs) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}

	shared := min(len(docs), contextMaxDocs)
	budget := maxChars - contextMargin
	if budget < 1 {
		budget = maxChars
	}
	perDoc := budget / shared
	remainder := budget - perDoc*shared

	var parts []string
	total := 0
	for i, doc := range docs {
		content := stripEmbedPrefix(strings.TrimSpace(doc.Content))
		if content == "" {
			continue
		}

		allowance := perDoc
		if i == 0 {
			allowance += remainder
		}
		if len(content) > allowance {
			content = truncateAtBoundary(content, allowance)
		}

		block := fmt.Sprintf("[%d] %s\n%s\n", i+1, docTitle(doc, i), content)
		if total+len(block) > maxChars {
			break
		}
		parts = append(parts, block)
		total += len(block)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// stripEmbedPrefix removes a conventional embedding-model prefix before
// the content is measured or shown.
func stripEmbedPrefix(content string) string {
	for _, prefix := range embedPrefixes {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(content[len(prefix):])
		}
	}
	return content
}

// sentence-ending punctuation accepted as a truncation boundary.
const boundaryRunes = ".!?\n"

// truncateAtBoundary cuts content to at most limit characters,
// preferring the last sentence end or line break, falling back to a
// hard cut with an ellipsis when no boundary lands late enough.
func truncateAtBoundary(content string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(content) <= limit {
		return content
	}

	// Never slice mid-rune: back the cut up to a rune boundary first.
	end := limit
	for end > 0 && !utf8.RuneStart(content[end]) {
		end--
	}

	cut := content[:end]
	if idx := strings.LastIndexAny(cut, boundaryRunes); idx >= int(float64(limit)*truncateFloor) {
		return strings.TrimSpace(cut[:idx+1])
	}
	return strings.TrimSpace(cut) + "…"
}

// docTitle resolves a display title with the metadata fallback chain
// title → source → chunk id → positional placeholder.
func docTitle(doc Document, index int) string {
	for _, key := range []string{MetaTitle, MetaSource, MetaChunkID} {
		if v := strings.TrimSpace(doc.Metadata[key]); v != "" {
			return v
		}
	}
	return fmt.Sprintf("doc_%d", index+1)
}
