// Package ingest prepares the knowledge corpus: it crawls handbook
// pages, extracts sectioned text chunks from their HTML and loads them
// into the knowledge store. This is the offline path; the serving
// pipeline never calls into it.
package ingest

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/prepbot/prepbot/internal/knowledge"
)

// passagePrefix is the e5-convention prefix attached to stored chunk
// content; queries get "query: " at search time.
const passagePrefix = "passage: "

// maxChunkChars bounds one chunk's body. Long sections are split at
// paragraph boundaries.
const maxChunkChars = 1800

// Chunk is one extracted passage ready for indexing.
type Chunk struct {
	ID         string
	Title      string
	SourceLink string
	Body       string
}

// Document converts the chunk to its storable form. Content carries the
// embedding prefix; title and link travel as metadata.
func (c Chunk) Document() knowledge.Document {
	return knowledge.Document{
		ID:      c.ID,
		Content: passagePrefix + c.Body,
		Metadata: map[string]string{
			"title":       c.Title,
			"source_link": c.SourceLink,
			"chunk_id":    c.ID,
		},
		SourceType: knowledge.SourceTypeHandbook,
	}
}

// chunkID derives a stable id from the chunk's identity, so re-running
// ingest upserts instead of duplicating.
func chunkID(sourceLink, title string, index int) string {
	name := sourceLink + "|" + title + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// splitBody cuts an oversized section body at paragraph boundaries.
func splitBody(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if len(body) <= maxChunkChars {
		return []string{body}
	}

	var parts []string
	var buf strings.Builder
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(para)+2 > maxChunkChars {
			parts = append(parts, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	if buf.Len() > 0 {
		parts = append(parts, buf.String())
	}
	return parts
}
