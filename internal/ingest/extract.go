package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// sectionSelector matches the headings that open a handbook section.
const sectionSelector = "h1, h2, h3"

// ExtractPage turns one handbook page into chunks. The page is first
// run through readability to strip navigation and boilerplate; if that
// yields nothing usable the raw document is sectioned as-is.
func ExtractPage(rawHTML string, pageURL *url.URL) ([]Chunk, error) {
	content := rawHTML
	article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		content = article.Content
	}

	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	doc := goquery.NewDocumentFromNode(node)

	chunks := sectionChunks(doc, pageURL)
	if len(chunks) == 0 {
		// No headings at all. Index whole-page text under the page
		// title so the content is still searchable.
		body := strings.TrimSpace(doc.Find("body").Text())
		if body == "" {
			body = strings.TrimSpace(doc.Text())
		}
		title := pageTitle(doc, article.Title, pageURL)
		chunks = buildChunks(title, pageURL.String(), body)
	}
	return chunks, nil
}

// sectionChunks walks the document heading by heading, collecting the
// text between one heading and the next into a section body.
func sectionChunks(doc *goquery.Document, pageURL *url.URL) []Chunk {
	var chunks []Chunk

	doc.Find(sectionSelector).Each(func(_ int, heading *goquery.Selection) {
		title := strings.TrimSpace(heading.Text())
		if title == "" {
			return
		}

		var body strings.Builder
		for node := heading.Next(); node.Length() > 0; node = node.Next() {
			if node.Is(sectionSelector) {
				break
			}
			text := strings.TrimSpace(node.Text())
			if text == "" {
				continue
			}
			if body.Len() > 0 {
				body.WriteString("\n\n")
			}
			body.WriteString(text)
		}

		link := sectionLink(pageURL, heading)
		chunks = append(chunks, buildChunks(title, link, body.String())...)
	})

	return chunks
}

// buildChunks splits one section body into bounded chunks with stable ids.
func buildChunks(title, link, body string) []Chunk {
	parts := splitBody(body)
	chunks := make([]Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, Chunk{
			ID:         chunkID(link, title, i),
			Title:      title,
			SourceLink: link,
			Body:       part,
		})
	}
	return chunks
}

// sectionLink points at the heading's anchor when it carries an id.
func sectionLink(pageURL *url.URL, heading *goquery.Selection) string {
	if id, ok := heading.Attr("id"); ok && id != "" {
		anchored := *pageURL
		anchored.Fragment = id
		return anchored.String()
	}
	return pageURL.String()
}

func pageTitle(doc *goquery.Document, articleTitle string, pageURL *url.URL) string {
	if t := strings.TrimSpace(articleTitle); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return pageURL.Host + pageURL.Path
}
