// Package markup converts model output written in a constrained Markdown
// dialect into the chat transport's HTML subset and splits the result
// into messages that respect the transport's hard length limit.
//
// Supported constructs: fenced code blocks, headings (# through ####),
// inline code, bold and italic. Everything else is HTML-escaped so model
// output can never inject structural markup. Precedence among inline
// constructs is inline code > bold > italic > heading wrap, resolved by
// a single left-to-right scan rather than ordered text substitution.
package markup

import (
	"strings"
)

// BlockKind distinguishes rendered block variants.
type BlockKind int

const (
	// TextBlock is escaped prose, splittable at paragraph and line
	// boundaries.
	TextBlock BlockKind = iota
	// CodeBlock is a <pre><code> block. Atomic: the splitter never cuts
	// inside it, only re-derives it into smaller code blocks.
	CodeBlock
)

// Block is one rendered unit handed to the splitter.
type Block struct {
	Kind BlockKind
	HTML string

	// Source keeps the unescaped code body for CodeBlock so the splitter
	// can re-wrap it line by line when the whole block exceeds the limit.
	Source string
	// Lang is the fence's language tag, if any.
	Lang string
}

const fence = "```"

// Render converts source text into an ordered sequence of blocks. It
// never fails: malformed input (an unterminated fence, stray backticks,
// odd heading syntax) degrades to escaped literal text.
func Render(source string) []Block {
	var blocks []Block

	rest := source
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			break
		}

		if text := rest[:open]; text != "" {
			blocks = append(blocks, textBlock(text))
		}

		body := rest[open+len(fence):]
		lang, body := splitFenceInfo(body)

		closing := strings.Index(body, fence)
		var code string
		if closing < 0 {
			// Unterminated fence: the rest of the input is code.
			code, rest = body, ""
		} else {
			code, rest = body[:closing], body[closing+len(fence):]
		}

		blocks = append(blocks, codeBlock(code, lang))

		if rest == "" {
			break
		}
	}

	if rest != "" {
		blocks = append(blocks, textBlock(rest))
	}
	return blocks
}

// splitFenceInfo consumes the fence info line ("go\n", "python\n" or just
// "\n") and returns the language tag plus the remaining body.
func splitFenceInfo(body string) (lang, rest string) {
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return "", body
	}
	info := strings.TrimSpace(body[:nl])
	if info == "" {
		return "", body[nl+1:]
	}
	if strings.ContainsAny(info, "` ") {
		// Not a language tag; keep the line as code content.
		return "", body
	}
	return info, body[nl+1:]
}

func codeBlock(code, lang string) Block {
	code = strings.TrimRight(code, "\n")
	return Block{
		Kind:   CodeBlock,
		HTML:   wrapCode(code, lang),
		Source: code,
		Lang:   lang,
	}
}

// wrapCode wraps escaped code in the transport's monospace block markup.
func wrapCode(code, lang string) string {
	if lang != "" {
		return `<pre><code class="language-` + escapeHTML(lang) + `">` + escapeHTML(code) + "</code></pre>"
	}
	return "<pre><code>" + escapeHTML(code) + "</code></pre>"
}

func textBlock(text string) Block {
	return Block{Kind: TextBlock, HTML: renderText(text)}
}

// renderText renders a non-fenced span line by line so headings stay
// block-level. Newlines are preserved verbatim.
func renderText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if inner, ok := headingLine(line); ok {
			lines[i] = "<b>" + renderInline(inner) + "</b>"
		} else {
			lines[i] = renderInline(line)
		}
	}
	return strings.Join(lines, "\n")
}

// headingLine reports whether line is a level 1-4 heading and returns
// its content.
func headingLine(line string) (string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level < 1 || level > 4 || level >= len(line) || line[level] != ' ' {
		return "", false
	}
	return strings.TrimSpace(line[level+1:]), true
}

// renderInline resolves inline code, bold and italic spans in a single
// left-to-right pass, escaping everything in between. Tags this package
// itself produces and citation anchors pass through unescaped so
// re-rendering already-rendered markup cannot double-escape it.
func renderInline(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		switch c := s[i]; {
		case c == '`':
			if end := strings.IndexByte(s[i+1:], '`'); end >= 0 && !strings.Contains(s[i+1:i+1+end], "\n") && end > 0 {
				b.WriteString("<code>")
				b.WriteString(escapeHTML(s[i+1 : i+1+end]))
				b.WriteString("</code>")
				i += end + 2
				continue
			}
			b.WriteString("`")
			i++

		case strings.HasPrefix(s[i:], "**"), strings.HasPrefix(s[i:], "__"):
			delim := s[i : i+2]
			if inner, rest, ok := cutSpan(s[i+2:], delim); ok {
				b.WriteString("<b>")
				b.WriteString(renderInline(inner))
				b.WriteString("</b>")
				i = len(s) - len(rest)
				continue
			}
			b.WriteString(escapeHTML(delim))
			i += 2

		case c == '*' || c == '_':
			if inner, rest, ok := cutItalic(s[i+1:], c); ok {
				b.WriteString("<i>")
				b.WriteString(renderInline(inner))
				b.WriteString("</i>")
				i = len(s) - len(rest)
				continue
			}
			b.WriteByte(c)
			i++

		case c == '<':
			if tag := passthroughTag(s[i:]); tag > 0 {
				b.WriteString(s[i : i+tag])
				i += tag
				continue
			}
			b.WriteString("&lt;")
			i++

		case c == '>':
			b.WriteString("&gt;")
			i++

		case c == '&':
			if entity := entityLen(s[i:]); entity > 0 {
				// Already-escaped entity from a previous render pass.
				b.WriteString(s[i : i+entity])
				i += entity
				continue
			}
			b.WriteString("&amp;")
			i++

		case c == '"':
			b.WriteString("&quot;")
			i++

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// cutSpan finds the closing delim and returns the span's inner text plus
// the remainder after the delimiter. The span must be non-empty and stay
// on one line.
func cutSpan(s, delim string) (inner, rest string, ok bool) {
	end := strings.Index(s, delim)
	if end <= 0 || strings.Contains(s[:end], "\n") {
		return "", "", false
	}
	return s[:end], s[end+len(delim):], true
}

// cutItalic finds a closing single delimiter that is not half of a bold
// delimiter pair, so *text* matches while ** stays available for bold.
func cutItalic(s string, delim byte) (inner, rest string, ok bool) {
	for j := 0; j < len(s); j++ {
		if s[j] != delim {
			continue
		}
		if j+1 < len(s) && s[j+1] == delim {
			j++ // part of a double delimiter, skip both
			continue
		}
		if j == 0 || strings.Contains(s[:j], "\n") {
			return "", "", false
		}
		return s[:j], s[j+1:], true
	}
	return "", "", false
}

// Tags the renderer itself emits. Anything else starting with '<' gets
// escaped.
var passthroughTags = []string{
	"<b>", "</b>", "<i>", "</i>", "<code>", "</code>",
	"<pre>", "</pre>", "</a>",
}

// passthroughTag returns the length of a recognized tag at the start of
// s, or 0. Citation anchors (<a href="...">) injected by the source
// renderer must survive escaping intact.
func passthroughTag(s string) int {
	for _, tag := range passthroughTags {
		if strings.HasPrefix(s, tag) {
			return len(tag)
		}
	}
	if strings.HasPrefix(s, `<a href="`) {
		if end := strings.Index(s, ">"); end > 0 && !strings.Contains(s[:end], "\n") {
			return end + 1
		}
	}
	return 0
}

// entityLen returns the length of a known HTML entity at the start of s,
// or 0.
func entityLen(s string) int {
	for _, entity := range []string{"&amp;", "&lt;", "&gt;", "&quot;"} {
		if strings.HasPrefix(s, entity) {
			return len(entity)
		}
	}
	return 0
}

// escapeHTML escapes the characters the transport would otherwise
// interpret as markup.
func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)
