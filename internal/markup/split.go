package markup

import (
	"strings"
	"unicode/utf8"
)

// DefaultLimit is the transport's hard per-message character limit.
const DefaultLimit = 4096

// FormatAndSplit renders markdown-ish source text and splits it into
// messages of at most limit characters. limit <= 0 uses DefaultLimit.
//
// Guarantee: non-blank source always yields at least one message, and no
// emitted message is empty after trimming.
func FormatAndSplit(source string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	msgs := Split(Render(source), limit)
	if len(msgs) == 0 && strings.TrimSpace(source) != "" {
		// Degenerate input (e.g. markup collapsed to nothing). Fall back
		// to the escaped raw text so the user always gets a message.
		msgs = splitPlain(escapeHTML(source), limit)
	}
	return msgs
}

// Split packs rendered blocks into messages of at most limit characters.
// Code blocks are atomic: a code block is either emitted as one message
// piece or re-derived into smaller complete code blocks, never cut
// mid-markup or mid-line.
func Split(blocks []Block, limit int) []string {
	var chunks []string
	var buf string

	flush := func() {
		if strings.TrimSpace(buf) != "" {
			chunks = append(chunks, splitPlain(buf, limit)...)
		}
		buf = ""
	}

	for _, blk := range blocks {
		if blk.Kind == CodeBlock {
			flush()
			if len(blk.HTML) <= limit {
				chunks = append(chunks, blk.HTML)
			} else {
				chunks = append(chunks, splitCode(blk.Source, blk.Lang, limit)...)
			}
			continue
		}

		joined := blk.HTML
		if buf != "" {
			joined = buf + "\n" + blk.HTML
		}
		if len(joined) <= limit {
			buf = joined
			continue
		}
		flush()
		buf = blk.HTML
	}
	flush()

	out := chunks[:0]
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// splitCode re-derives an oversized code block into a sequence of
// smaller code blocks, packing whole source lines so a boundary never
// lands inside a line.
func splitCode(source, lang string, limit int) []string {
	lines := splitAfterLines(source)
	if len(lines) == 0 {
		return []string{wrapCode("", lang)}
	}

	var chunks []string
	var cur string
	for _, line := range lines {
		if cur != "" && len(wrapCode(strings.TrimRight(cur+line, "\n"), lang)) > limit {
			chunks = append(chunks, wrapCode(strings.TrimRight(cur, "\n"), lang))
			cur = ""
		}
		if len(wrapCode(strings.TrimRight(line, "\n"), lang)) > limit {
			// A single line that alone exceeds the limit: cut it hard as
			// a last resort, keeping each piece a valid code block.
			for _, piece := range hardCut(strings.TrimRight(line, "\n"), func(s string) bool {
				return len(wrapCode(s, lang)) <= limit
			}) {
				chunks = append(chunks, wrapCode(piece, lang))
			}
			continue
		}
		cur += line
	}
	if strings.TrimRight(cur, "\n") != "" || len(chunks) == 0 {
		chunks = append(chunks, wrapCode(strings.TrimRight(cur, "\n"), lang))
	}
	return chunks
}

// splitAfterLines splits keeping the trailing newline on every line,
// like bufio scanning but without dropping separators.
func splitAfterLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			lines = append(lines, s)
			return lines
		}
		lines = append(lines, s[:nl+1])
		s = s[nl+1:]
		if s == "" {
			return lines
		}
	}
}

// splitPlain splits escaped prose into chunks of at most limit
// characters, preferring paragraph breaks, then line breaks. A line is
// never cut in the middle.
func splitPlain(text string, limit int) []string {
	text = strings.Trim(text, "\n")
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var buf string
	for _, part := range splitParagraphs(text) {
		if len(buf)+len(part) <= limit {
			buf += part
			continue
		}
		if buf != "" {
			chunks = append(chunks, strings.Trim(buf, "\n"))
			buf = ""
		}
		if len(part) <= limit {
			buf = part
			continue
		}

		// Oversized paragraph: pack individual lines.
		var lineBuf string
		for _, line := range splitAfterLines(part) {
			if len(line) > limit {
				// A single line beyond the limit cannot keep its
				// boundary; hard-cut it as a last resort.
				if trimmed := strings.Trim(lineBuf, "\n"); trimmed != "" {
					chunks = append(chunks, trimmed)
				}
				lineBuf = ""
				chunks = append(chunks, hardCut(strings.Trim(line, "\n"), func(s string) bool {
					return len(s) <= limit
				})...)
				continue
			}
			if len(lineBuf)+len(line) <= limit {
				lineBuf += line
			} else {
				if trimmed := strings.Trim(lineBuf, "\n"); trimmed != "" {
					chunks = append(chunks, trimmed)
				}
				lineBuf = line
			}
		}
		if strings.Trim(lineBuf, "\n") != "" {
			buf = lineBuf
		}
	}
	if strings.Trim(buf, "\n") != "" {
		chunks = append(chunks, strings.Trim(buf, "\n"))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// hardCut greedily takes the longest prefix of s (in whole runes) for
// which fits returns true, repeating until s is consumed.
func hardCut(s string, fits func(string) bool) []string {
	var pieces []string
	for s != "" {
		end := 0
		for end < len(s) {
			_, size := utf8.DecodeRuneInString(s[end:])
			if !fits(s[:end+size]) {
				break
			}
			end += size
		}
		if end == 0 {
			// Even one rune does not fit; emit it anyway so the loop
			// always makes progress.
			_, end = utf8.DecodeRuneInString(s)
		}
		pieces = append(pieces, s[:end])
		s = s[end:]
	}
	return pieces
}

// splitParagraphs splits text into alternating paragraph and blank-line
// separator parts, preserving both so rejoining loses nothing.
func splitParagraphs(text string) []string {
	var parts []string
	for text != "" {
		sep := strings.Index(text, "\n\n")
		if sep < 0 {
			parts = append(parts, text)
			break
		}
		if sep > 0 {
			parts = append(parts, text[:sep])
		}
		end := sep
		for end < len(text) && text[end] == '\n' {
			end++
		}
		parts = append(parts, text[sep:end])
		text = text[end:]
	}
	return parts
}
