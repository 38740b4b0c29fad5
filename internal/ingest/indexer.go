package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
)

// lockFile guards the rebuild so two ingest runs cannot interleave
// writes to the same index.
const lockFile = ".ingest.lock"

// Store is the slice of the knowledge store the indexer needs.
type Store interface {
	AddBatch(ctx context.Context, docs []knowledge.Document) (int, error)
}

// Indexer loads extracted chunks into the knowledge store.
type Indexer struct {
	store   Store
	crawler *Crawler
	dataDir string
	logger  log.Logger
}

// IndexerConfig carries the indexer's dependencies.
type IndexerConfig struct {
	Store   Store
	Crawler *Crawler
	DataDir string
	Logger  log.Logger
}

func NewIndexer(cfg IndexerConfig) (*Indexer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	crawler := cfg.Crawler
	if crawler == nil {
		crawler = NewCrawler(0, logger)
	}
	return &Indexer{
		store:   cfg.Store,
		crawler: crawler,
		dataDir: cfg.DataDir,
		logger:  logger,
	}, nil
}

// RebuildFromDir indexes every .html file under the data directory.
// Each file's first line may carry a "<!-- source: URL -->" comment
// naming the page it was saved from; otherwise a file:// link is used.
func (ix *Indexer) RebuildFromDir(ctx context.Context) (int, error) {
	return ix.locked(ctx, func() (int, error) {
		entries, err := os.ReadDir(ix.dataDir)
		if err != nil {
			return 0, fmt.Errorf("read data dir: %w", err)
		}

		var chunks []Chunk
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
				continue
			}
			path := filepath.Join(ix.dataDir, entry.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return 0, fmt.Errorf("read %s: %w", path, err)
			}
			pageURL := sourceOf(string(raw), path)
			extracted, err := ExtractPage(string(raw), pageURL)
			if err != nil {
				ix.logger.Warn("skipping page", "path", path, "error", err)
				continue
			}
			chunks = append(chunks, extracted...)
		}
		return ix.add(ctx, chunks)
	})
}

// RebuildFromWeb crawls the handbook starting at startURL and indexes
// every page it reaches.
func (ix *Indexer) RebuildFromWeb(ctx context.Context, startURL string) (int, error) {
	return ix.locked(ctx, func() (int, error) {
		pages, err := ix.crawler.Crawl(ctx, startURL)
		if err != nil {
			return 0, err
		}
		var chunks []Chunk
		for _, page := range pages {
			extracted, err := ExtractPage(page.HTML, page.URL)
			if err != nil {
				ix.logger.Warn("skipping page", "url", page.URL.String(), "error", err)
				continue
			}
			chunks = append(chunks, extracted...)
		}
		return ix.add(ctx, chunks)
	})
}

// locked runs fn under the data-dir file lock. A held lock means
// another rebuild is in flight and this one fails fast.
func (ix *Indexer) locked(ctx context.Context, fn func() (int, error)) (int, error) {
	if err := os.MkdirAll(ix.dataDir, 0o755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(ix.dataDir, lockFile))
	held, err := lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !held {
		return 0, fmt.Errorf("another ingest run holds the lock")
	}
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return fn()
}

func (ix *Indexer) add(ctx context.Context, chunks []Chunk) (int, error) {
	docs := make([]knowledge.Document, 0, len(chunks))
	for _, chunk := range chunks {
		docs = append(docs, chunk.Document())
	}
	added, err := ix.store.AddBatch(ctx, docs)
	if err != nil {
		return added, fmt.Errorf("index chunks: %w", err)
	}
	ix.logger.Info("index rebuilt", "chunks", added)
	return added, nil
}

// sourceOf recovers the original page URL from a saved file's source
// comment, falling back to a file:// link.
func sourceOf(rawHTML, path string) *url.URL {
	const marker = "<!-- source:"
	if idx := strings.Index(rawHTML, marker); idx >= 0 {
		rest := rawHTML[idx+len(marker):]
		if end := strings.Index(rest, "-->"); end >= 0 {
			if u, err := url.Parse(strings.TrimSpace(rest[:end])); err == nil && u.Host != "" {
				return u
			}
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &url.URL{Scheme: "file", Path: abs}
}
