package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/memory"
)

// fakeKnowledge records uploads and serves scripted counts.
type fakeKnowledge struct {
	docs     []knowledge.Document
	counts   map[string]int64
	addErr   error
	countErr error
}

func (f *fakeKnowledge) Add(_ context.Context, doc knowledge.Document) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeKnowledge) Count(_ context.Context, sourceType string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[sourceType], nil
}

func newDocsTestServer(k Knowledge) *httptest.Server {
	srv := NewServer(ServerConfig{
		Engine:    &fakeEngine{answer: "x"},
		Memory:    memory.NewStore(0),
		Knowledge: k,
		Logger:    log.NewNop(),
	})
	return httptest.NewServer(srv.Handler())
}

func TestDocumentUpload(t *testing.T) {
	k := &fakeKnowledge{}
	ts := newDocsTestServer(k)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/documents", UploadRequest{
		Title:      "Bloom filters",
		SourceLink: "https://handbook.example.com/extras#bloom",
		Content:    "Probabilistic membership with tunable false positives.",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.ID)

	require.Len(t, k.docs, 1)
	doc := k.docs[0]
	assert.Equal(t, out.ID, doc.ID)
	assert.Equal(t, knowledge.SourceTypeUpload, doc.SourceType)
	assert.True(t, strings.HasPrefix(doc.Content, "passage: "), "content embeds with the passage prefix")
	assert.Contains(t, doc.Content, "tunable false positives")
	assert.Equal(t, "Bloom filters", doc.Metadata["title"])
	assert.Equal(t, "https://handbook.example.com/extras#bloom", doc.Metadata["source_link"])
}

func TestDocumentUploadKeepsGivenID(t *testing.T) {
	k := &fakeKnowledge{}
	ts := newDocsTestServer(k)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/documents", UploadRequest{
		ID:      "extras-7",
		Title:   "Tries",
		Content: "Prefix trees.",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, k.docs, 1)
	assert.Equal(t, "extras-7", k.docs[0].ID)
}

func TestDocumentUploadValidation(t *testing.T) {
	k := &fakeKnowledge{}
	ts := newDocsTestServer(k)
	defer ts.Close()

	tests := []struct {
		name string
		body UploadRequest
		code string
	}{
		{"missing content", UploadRequest{Title: "T"}, "MISSING_CONTENT"},
		{"missing title", UploadRequest{Content: "c"}, "MISSING_TITLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/documents", tt.body)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.code, out.Error)
		})
	}
	assert.Empty(t, k.docs)
}

func TestDocumentUploadStoreFailure(t *testing.T) {
	ts := newDocsTestServer(&fakeKnowledge{addErr: errors.New("db down")})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/documents", UploadRequest{Title: "T", Content: "c"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDocumentCount(t *testing.T) {
	k := &fakeKnowledge{counts: map[string]int64{
		"":                           12,
		knowledge.SourceTypeHandbook: 9,
		knowledge.SourceTypeUpload:   3,
	}}
	ts := newDocsTestServer(k)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/documents/count")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out CountResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, int64(12), out.Total)
	assert.Equal(t, int64(9), out.Handbook)
	assert.Equal(t, int64(3), out.Upload)
}

func TestDocumentCountFailure(t *testing.T) {
	ts := newDocsTestServer(&fakeKnowledge{countErr: errors.New("db down")})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/documents/count")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDocumentEndpointsWithoutKnowledgeBase(t *testing.T) {
	ts := newDocsTestServer(nil)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/api/documents", UploadRequest{Title: "T", Content: "c"})
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	countResp, err := http.Get(ts.URL + "/api/documents/count")
	require.NoError(t, err)
	countResp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, countResp.StatusCode)
}
