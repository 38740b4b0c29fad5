package app

import (
	"testing"

	"github.com/prepbot/prepbot/internal/config"
	"github.com/prepbot/prepbot/internal/log"
)

func TestCloseOnPartialApp(t *testing.T) {
	a := &App{Logger: log.NewNop()}
	if err := a.Close(); err != nil {
		t.Errorf("Close on partial app: %v", err)
	}
}

func TestNewIndexerWithoutKnowledge(t *testing.T) {
	a := &App{
		Config: &config.Config{IngestDataDir: "data"},
		Logger: log.NewNop(),
	}
	if a.KnowledgeConnected() {
		t.Error("app without store reports knowledge connected")
	}
	if _, err := a.NewIndexer(); err == nil {
		t.Error("NewIndexer succeeded without a knowledge store")
	}
}
