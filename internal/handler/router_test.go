package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
)

type panicRelay struct{}

func (panicRelay) Relay(context.Context, []chat.HistoryEntry, character.Descriptor) (chat.RelayResponse, error) {
	panic("relay handler blew up")
}

func newTestRouter(t *testing.T, r relay.Relayer) http.Handler {
	t.Helper()
	catalog, err := character.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}
	svc := conversation.NewService(r, catalog, conversation.Config{})
	t.Cleanup(svc.Shutdown)

	return NewRouter(Dependencies{Catalog: catalog, Relay: r, Conversations: svc})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, panicRelay{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS headers on every response")
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	router := newTestRouter(t, panicRelay{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/chat", nil))

	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected preflight: %d %q", resp.Code, resp.Body.String())
	}
}

func TestRecovererCatchesHandlerPanic(t *testing.T) {
	router := newTestRouter(t, panicRelay{})
	payload, _ := json.Marshal(chat.RelayRequest{
		Messages: []chat.HistoryEntry{{Role: chat.RoleUser, Content: "hi"}},
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload)))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}

func TestRoutesAreMounted(t *testing.T) {
	router := newTestRouter(t, panicRelay{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("catalog: unexpected status %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))
	if resp.Code != http.StatusNotFound || !bytes.Contains(resp.Body.Bytes(), []byte("session not found")) {
		t.Fatalf("session lookup: unexpected response %d %s", resp.Code, resp.Body.String())
	}
}
