package rag

import (
	"fmt"
	"strings"
)

// sourceLinkMarker is the inline marker ingest embeds in chunk content
// when structured metadata is unavailable: [source_link: https://...].
const sourceLinkMarker = "[source_link:"

// FormatSources renders a deduplicated bullet list of citations for the
// given documents. Documents with a resolvable link become clickable
// anchors; title-only documents become plain bullets. Returns "" when
// nothing is resolvable.
func FormatSources(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}

	type citation struct{ title, link string }
	seen := make(map[citation]bool)
	var lines []string

	for _, doc := range docs {
		title, link := resolveCitation(doc)
		if title == "" {
			continue
		}
		c := citation{title: title, link: link}
		if seen[c] {
			continue
		}
		seen[c] = true

		if link != "" {
			lines = append(lines, fmt.Sprintf(`- <a href="%s">%s</a>`, link, title))
		} else {
			lines = append(lines, "- "+title)
		}
	}

	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// resolveCitation finds a document's display title and source link,
// preferring structured metadata and falling back to markers embedded
// in the raw content.
func resolveCitation(doc Document) (title, link string) {
	title = strings.TrimSpace(doc.Metadata[MetaTitle])
	link = strings.TrimSpace(doc.Metadata[MetaSourceLink])
	if link == "" {
		if src := strings.TrimSpace(doc.Metadata[MetaSource]); strings.HasPrefix(src, "http") {
			link = src
		}
	}

	content := strings.TrimSpace(stripEmbedPrefix(strings.TrimSpace(doc.Content)))

	if title == "" {
		title = headingTitle(content)
	}
	if link == "" {
		link = markerLink(content)
	}
	if title == "" && link == "" {
		if src := strings.TrimSpace(doc.Metadata[MetaSource]); src != "" {
			title = src
		}
	}
	if title == "" && link != "" {
		title = link
	}
	return title, link
}

// headingTitle extracts a leading markdown heading line as a title.
func headingTitle(content string) string {
	line, _, _ := strings.Cut(content, "\n")
	line = strings.TrimSpace(line)
	trimmed := strings.TrimLeft(line, "#")
	if trimmed != line && strings.HasPrefix(trimmed, " ") {
		return strings.TrimSpace(trimmed)
	}
	return ""
}

// markerLink extracts an inline [source_link: ...] marker.
func markerLink(content string) string {
	start := strings.Index(content, sourceLinkMarker)
	if start < 0 {
		return ""
	}
	rest := content[start+len(sourceLinkMarker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// noInfoPhrases are admissions that the model found nothing in the
// provided context. When one appears outside a conditional clause, the
// engine suppresses citations: citing sources under an answer that says
// "nothing found" would be misleading.
var noInfoPhrases = []string{
	"no information found",
	"no information is found",
	"no relevant information",
	"couldn't find information",
	"could not find information",
	"not covered in the provided context",
	"the context does not contain",
	"no data available",
}

// conditionalMarkers indicate a hypothetical mention ("if no
// information is found, ...") rather than a genuine admission.
var conditionalMarkers = []string{
	"if ", "when ", "in case", "unless ", "should ", "would ",
}

// admissionWindow is how many characters around a matched phrase are
// scanned for conditional markers.
const admissionWindow = 60

// ContainsNoInfoAdmission reports whether answer genuinely admits that
// no information was found. A phrase inside a conditional clause does
// not count.
func ContainsNoInfoAdmission(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range noInfoPhrases {
		// Every occurrence is checked: an early conditional mention must
		// not mask a genuine admission of the same phrase later on.
		for offset := 0; ; {
			idx := strings.Index(lower[offset:], phrase)
			if idx < 0 {
				break
			}
			idx += offset
			offset = idx + len(phrase)

			start := max(idx-admissionWindow, 0)
			end := min(offset+admissionWindow, len(lower))
			window := lower[start:end]

			conditional := false
			for _, marker := range conditionalMarkers {
				if strings.Contains(window, marker) {
					conditional = true
					break
				}
			}
			if !conditional {
				return true
			}
		}
	}
	return false
}
