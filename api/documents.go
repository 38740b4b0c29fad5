package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/prepbot/prepbot/internal/knowledge"
	"github.com/prepbot/prepbot/internal/log"
)

// uploadPassagePrefix matches the e5-convention prefix the ingest path
// attaches to stored content, so uploaded and crawled chunks embed the
// same way.
const uploadPassagePrefix = "passage: "

// Knowledge is the slice of the knowledge store the document endpoints
// consume.
type Knowledge interface {
	Add(ctx context.Context, doc knowledge.Document) error
	Count(ctx context.Context, sourceType string) (int64, error)
}

// DocumentsHandler serves admin document uploads and index counts.
type DocumentsHandler struct {
	knowledge Knowledge
	logger    log.Logger
}

// NewDocumentsHandler creates a documents handler. knowledge may be nil
// when the knowledge base is not connected; the endpoints then answer
// 503.
func NewDocumentsHandler(k Knowledge, logger log.Logger) *DocumentsHandler {
	return &DocumentsHandler{knowledge: k, logger: logger}
}

// RegisterRoutes registers document routes on the given mux.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.handleUpload)
	mux.HandleFunc("GET /api/documents/count", h.handleCount)
}

// UploadRequest adds one supplementary document to the index. ID is
// optional; a fresh one is generated when absent.
type UploadRequest struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	SourceLink string `json:"source_link,omitempty"`
	Content    string `json:"content"`
}

// UploadResponse reports the stored document's id.
type UploadResponse struct {
	ID string `json:"id"`
}

func (h *DocumentsHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "NO_KNOWLEDGE_BASE",
			"knowledge base is not connected")
		return
	}

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_CONTENT", "content is required")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_TITLE", "title is required")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	doc := knowledge.Document{
		ID:      id,
		Content: uploadPassagePrefix + strings.TrimSpace(req.Content),
		Metadata: map[string]string{
			"title":    strings.TrimSpace(req.Title),
			"chunk_id": id,
		},
		SourceType: knowledge.SourceTypeUpload,
	}
	if link := strings.TrimSpace(req.SourceLink); link != "" {
		doc.Metadata["source_link"] = link
	}

	if err := h.knowledge.Add(r.Context(), doc); err != nil {
		h.logger.Error("document upload failed", "id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "UPLOAD_FAILED",
			"could not store the document")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, UploadResponse{ID: id})
}

// CountResponse breaks the indexed documents down by source type.
type CountResponse struct {
	Total    int64 `json:"total"`
	Handbook int64 `json:"handbook"`
	Upload   int64 `json:"upload"`
}

func (h *DocumentsHandler) handleCount(w http.ResponseWriter, r *http.Request) {
	if h.knowledge == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "NO_KNOWLEDGE_BASE",
			"knowledge base is not connected")
		return
	}

	ctx := r.Context()
	total, err := h.knowledge.Count(ctx, "")
	if err != nil {
		h.logger.Error("document count failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "COUNT_FAILED",
			"could not count documents")
		return
	}
	handbook, err := h.knowledge.Count(ctx, knowledge.SourceTypeHandbook)
	if err != nil {
		h.logger.Error("document count failed", "source_type", knowledge.SourceTypeHandbook, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "COUNT_FAILED",
			"could not count documents")
		return
	}
	uploads, err := h.knowledge.Count(ctx, knowledge.SourceTypeUpload)
	if err != nil {
		h.logger.Error("document count failed", "source_type", knowledge.SourceTypeUpload, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "COUNT_FAILED",
			"could not count documents")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, CountResponse{
		Total:    total,
		Handbook: handbook,
		Upload:   uploads,
	})
}
