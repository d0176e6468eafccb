package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/brunelhq/brunel-support/internal/automation"
	"github.com/brunelhq/brunel-support/internal/exchange"
	"github.com/brunelhq/brunel-support/internal/storage"
	"github.com/brunelhq/brunel-support/internal/storage/memory"
)

func newTestHandler(t *testing.T, upstream http.HandlerFunc) (*chi.Mux, *memory.Store) {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	store := memory.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := exchange.NewService(store, automation.NewClient(srv.URL), logger)

	r := chi.NewRouter()
	NewHandler(store, svc, logger).Register(r)
	return r, store
}

func TestHandleHealth(t *testing.T) {
	r, _ := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestConversationCRUD(t *testing.T) {
	r, _ := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {})

	// Create
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/conversations", strings.NewReader(`{"title":"Order help"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", rec.Code)
	}
	var created storage.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("created conversation has no ID")
	}
	if created.Title != "Order help" {
		t.Errorf("Title = %q, want Order help", created.Title)
	}

	// Get
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/conversations/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	// List
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/conversations?limit=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}
	var listed []*storage.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed count = %d, want 1", len(listed))
	}

	// Delete
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/conversations/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/conversations/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestHandleListConversations_NegativeQueryParams(t *testing.T) {
	r, store := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {})

	if err := store.CreateConversation(context.Background(), &storage.Conversation{ID: "conv-1"}); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/conversations?offset=-1&limit=-3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var listed []*storage.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("listed count = %d, want 1", len(listed))
	}
}

func TestHandleSendMessage_StreamsEvents(t *testing.T) {
	r, store := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"type":"item","content":"Hel"}`)
		fmt.Fprintln(w, `{"type":"item","content":"lo"}`)
		fmt.Fprintln(w, `{"type":"end"}`)
	})

	conv := &storage.Conversation{ID: "conv-1"}
	if err := store.CreateConversation(context.Background(), conv); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/conversations/conv-1/messages", strings.NewReader(`{"content":"greet me"}`))
	r.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: delta") {
		t.Errorf("body missing delta events: %s", body)
	}
	if !strings.Contains(body, "event: message") {
		t.Errorf("body missing final message event: %s", body)
	}
	if !strings.Contains(body, `"Hello"`) {
		t.Errorf("body missing final content: %s", body)
	}

	// Deltas must arrive before the durable message.
	if strings.Index(body, "event: delta") > strings.Index(body, "event: message") {
		t.Error("delta events arrived after the final message event")
	}
}

func TestHandleSendMessage_Validation(t *testing.T) {
	r, store := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {})

	if err := store.CreateConversation(context.Background(), &storage.Conversation{ID: "conv-1"}); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/conversations/conv-1/messages", strings.NewReader(`{"content":"  "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank content status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/conversations/conv-1/messages", strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestHandleSendMessage_UnknownConversation(t *testing.T) {
	r, _ := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/conversations/missing/messages", strings.NewReader(`{"content":"hi"}`)))

	if !strings.Contains(rec.Body.String(), "event: error") {
		t.Errorf("body = %s, want an error event", rec.Body.String())
	}
}
