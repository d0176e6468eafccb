package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brunelhq/brunel-support/internal/exchange"
	"github.com/brunelhq/brunel-support/internal/server"
	"github.com/brunelhq/brunel-support/internal/storage"
)

// Handler exposes the conversation API.
type Handler struct {
	store    storage.ConversationStore
	exchange *exchange.Service
	logger   *slog.Logger
}

// NewHandler wires the handler against the store and exchange service.
func NewHandler(store storage.ConversationStore, svc *exchange.Service, logger *slog.Logger) *Handler {
	return &Handler{store: store, exchange: svc, logger: logger}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/health", h.HandleHealth)
	r.Post("/api/conversations", h.HandleCreateConversation)
	r.Get("/api/conversations", h.HandleListConversations)
	r.Get("/api/conversations/{id}", h.HandleGetConversation)
	r.Delete("/api/conversations/{id}", h.HandleDeleteConversation)
	r.Post("/api/conversations/{id}/messages", h.HandleSendMessage)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.Body != nil {
		// An empty body is fine, the title defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	conv := &storage.Conversation{
		ID:    uuid.NewString(),
		Title: strings.TrimSpace(req.Title),
	}
	if err := h.store.CreateConversation(r.Context(), conv); err != nil {
		server.AddError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	conversations, err := h.store.ListConversations(r.Context(), opts)
	if err != nil {
		server.AddError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []*storage.Conversation{}
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.GetConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		server.AddError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteConversation(r.Context(), chi.URLParam(r, "id")); err != nil {
		server.AddError(r.Context(), err)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleSendMessage relays one prompt and streams live progress back as
// server-sent events: "delta" events carry provisional message
// snapshots, the final "message" event carries the durable outcome.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	progress := func(msg exchange.ProvisionalMessage) {
		writeEvent(w, flusher, "delta", msg)
	}

	outcome, err := h.exchange.Send(r.Context(), chi.URLParam(r, "id"), req.Content, progress)
	if err != nil {
		server.AddError(r.Context(), err)
		writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	writeEvent(w, flusher, "message", outcome)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
