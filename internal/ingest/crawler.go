package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/prepbot/prepbot/internal/log"
)

// defaultMaxDepth keeps the crawl on the handbook itself: the start
// page plus pages it links to directly.
const defaultMaxDepth = 2

// Page is one fetched handbook page.
type Page struct {
	URL  *url.URL
	HTML string
}

// Crawler fetches handbook pages from a single allowed host.
type Crawler struct {
	maxDepth int
	logger   log.Logger
}

// NewCrawler builds a crawler. A non-positive depth falls back to the
// default.
func NewCrawler(maxDepth int, logger log.Logger) *Crawler {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Crawler{maxDepth: maxDepth, logger: logger}
}

// Crawl walks outward from startURL, staying on its host, and returns
// every HTML page it fetched. Cancelling ctx aborts pending requests;
// pages fetched before cancellation are still returned along with the
// context error.
func (c *Crawler) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if start.Host == "" {
		return nil, fmt.Errorf("start url %q has no host", startURL)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(start.Host),
		colly.MaxDepth(c.maxDepth),
	)

	var pages []Page

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		c.logger.Debug("fetching page", "url", r.URL.String())
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		// Errors here mean the link was filtered or already visited.
		_ = e.Request.Visit(href)
	})

	collector.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}
		pages = append(pages, Page{URL: r.Request.URL, HTML: string(r.Body)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if err := collector.Visit(start.String()); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", startURL, err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}
	c.logger.Info("crawl finished", "start", startURL, "pages", len(pages))
	return pages, nil
}
