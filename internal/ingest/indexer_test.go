package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"github.com/prepbot/prepbot/internal/log"
)

func writePage(t *testing.T, dir, name, html string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(html), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRebuildFromDir(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "ds.html", "<!-- source: https://handbook.example.com/ds -->\n"+samplePage)
	writePage(t, dir, "notes.txt", "not html, must be ignored")

	store := &recordingStore{}
	ix, err := NewIndexer(IndexerConfig{Store: store, DataDir: dir, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}

	added, err := ix.RebuildFromDir(context.Background())
	if err != nil {
		t.Fatalf("RebuildFromDir: %v", err)
	}
	if added != len(store.docs) || added == 0 {
		t.Fatalf("added = %d, stored = %d, want matching non-zero counts", added, len(store.docs))
	}

	for _, doc := range store.docs {
		if !strings.HasPrefix(doc.Content, "passage: ") {
			t.Errorf("doc %s content lacks passage prefix", doc.ID)
		}
		if !strings.HasPrefix(doc.Metadata["source_link"], "https://handbook.example.com/ds") {
			t.Errorf("doc %s link = %q, want source comment URL", doc.ID, doc.Metadata["source_link"])
		}
	}
}

func TestRebuildFromDirFileFallbackLink(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "local.html", samplePage)

	store := &recordingStore{}
	ix, err := NewIndexer(IndexerConfig{Store: store, DataDir: dir, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	if _, err := ix.RebuildFromDir(context.Background()); err != nil {
		t.Fatalf("RebuildFromDir: %v", err)
	}
	if len(store.docs) == 0 {
		t.Fatal("no documents indexed")
	}
	if !strings.HasPrefix(store.docs[0].Metadata["source_link"], "file://") {
		t.Errorf("link = %q, want file:// fallback", store.docs[0].Metadata["source_link"])
	}
}

func TestRebuildRefusesHeldLock(t *testing.T) {
	dir := t.TempDir()
	lock := flock.New(filepath.Join(dir, lockFile))
	held, err := lock.TryLock()
	if err != nil || !held {
		t.Fatalf("pre-acquire lock: held=%v err=%v", held, err)
	}
	defer lock.Unlock()

	ix, err := NewIndexer(IndexerConfig{Store: &recordingStore{}, DataDir: dir, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	if _, err := ix.RebuildFromDir(context.Background()); err == nil {
		t.Fatal("rebuild succeeded while another run held the lock")
	}
}

func TestRebuildCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writePage(t, dir, "ds.html", samplePage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &recordingStore{}
	ix, err := NewIndexer(IndexerConfig{Store: store, DataDir: dir, Logger: log.NewNop()})
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	if _, err := ix.RebuildFromDir(ctx); err == nil {
		t.Fatal("rebuild ignored cancelled context")
	}
	if len(store.docs) != 0 {
		t.Errorf("stored %d docs after cancellation, want 0", len(store.docs))
	}
}

func TestNewIndexerValidation(t *testing.T) {
	if _, err := NewIndexer(IndexerConfig{DataDir: "x"}); err == nil {
		t.Error("missing store accepted")
	}
	if _, err := NewIndexer(IndexerConfig{Store: &recordingStore{}}); err == nil {
		t.Error("missing data dir accepted")
	}
}
