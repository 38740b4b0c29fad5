package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/prepbot/prepbot/internal/log"
	"github.com/prepbot/prepbot/internal/markup"
	"github.com/prepbot/prepbot/internal/memory"
)

// Engine answers one user message within a conversation.
type Engine interface {
	Answer(ctx context.Context, conversationID, userID int64, text string) (string, error)
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	engine       Engine
	memory       *memory.Store
	messageLimit int
	logger       log.Logger
}

// NewChatHandler creates a chat handler. A non-positive messageLimit
// falls back to the renderer's default.
func NewChatHandler(engine Engine, mem *memory.Store, messageLimit int, logger log.Logger) *ChatHandler {
	if messageLimit <= 0 {
		messageLimit = markup.DefaultLimit
	}
	return &ChatHandler{engine: engine, memory: mem, messageLimit: messageLimit, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/style", h.handleStyle)
	mux.HandleFunc("POST /api/chat/clear", h.handleClear)
}

// ChatRequest is one question in one conversation. UserID defaults to
// the conversation id, which covers direct chats.
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id,omitempty"`
	Message        string `json:"message"`
}

// ChatResponse carries the answer as ready-to-send HTML chunks, each
// within the message limit.
type ChatResponse struct {
	Messages []string `json:"messages"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.ConversationID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_CONVERSATION_ID", "conversation_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_MESSAGE", "message is required")
		return
	}
	if req.UserID == 0 {
		req.UserID = req.ConversationID
	}

	answer, err := h.engine.Answer(r.Context(), req.ConversationID, req.UserID, req.Message)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client is gone; nothing useful to write.
			return
		}
		h.logger.Error("answer failed", "conversation_id", req.ConversationID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "ANSWER_FAILED", "could not produce an answer")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, ChatResponse{
		Messages: markup.FormatAndSplit(answer, h.messageLimit),
	})
}

// StyleRequest sets a user's answer style.
type StyleRequest struct {
	UserID int64  `json:"user_id"`
	Style  string `json:"style"`
}

func (h *ChatHandler) handleStyle(w http.ResponseWriter, r *http.Request) {
	var req StyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.UserID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_USER_ID", "user_id is required")
		return
	}
	style := memory.Style(req.Style)
	if !memory.ValidStyle(style) {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_STYLE",
			"style must be one of: brief, detailed, socratic")
		return
	}

	h.memory.SetStyle(req.UserID, style)
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"style": req.Style})
}

// ClearRequest forgets one conversation's history.
type ClearRequest struct {
	ConversationID int64 `json:"conversation_id"`
}

func (h *ChatHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return
	}
	if req.ConversationID == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_CONVERSATION_ID", "conversation_id is required")
		return
	}

	h.memory.Clear(req.ConversationID)
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "cleared"})
}
