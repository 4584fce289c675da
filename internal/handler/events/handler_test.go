package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
)

type staticRelay struct{}

func (staticRelay) Relay(context.Context, []chat.HistoryEntry, character.Descriptor) (chat.RelayResponse, error) {
	return chat.NewRelayResponse("static reply"), nil
}

func setupServer(t *testing.T) (*httptest.Server, *conversation.Service) {
	t.Helper()
	svc := conversation.NewService(staticRelay{}, nil, conversation.Config{})
	t.Cleanup(svc.Shutdown)

	r := chi.NewRouter()
	New(svc, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

// readEvents collects the next n event names, or fewer if the stream ends.
func readEvents(scanner *bufio.Scanner, n int) []string {
	var seen []string
	for len(seen) < n && scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			seen = append(seen, name)
		}
	}
	return seen
}

func TestEventsStreamSnapshotAndReply(t *testing.T) {
	srv, svc := setupServer(t)
	session, err := svc.CreateSession(context.Background(), character.Descriptor{Name: "Byte", Species: "Neon Ghost"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+session.ID()+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	if got := readEvents(scanner, 1); len(got) != 1 || got[0] != "snapshot" {
		t.Fatalf("expected snapshot first, got %v", got)
	}

	if !session.Submit("hello") {
		t.Fatal("submit rejected")
	}

	want := []string{"message", "state", "typing", "typing", "message", "state"}
	got := readEvents(scanner, len(want))
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event order: %v", got)
	}
}

func TestEventsStreamEndsOnClose(t *testing.T) {
	srv, svc := setupServer(t)
	session, err := svc.CreateSession(context.Background(), character.Descriptor{Species: "Echo Prism"})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	resp, err := http.Get(srv.URL + "/sessions/" + session.ID() + "/events")
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	readEvents(scanner, 1)

	if err := svc.CloseSession(context.Background(), session.ID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if got := readEvents(scanner, 1); len(got) != 1 || got[0] != "closed" {
		t.Fatalf("expected closed event, got %v", got)
	}
	if got := readEvents(scanner, 1); len(got) != 0 {
		t.Fatalf("expected stream to end after close, got %v", got)
	}
}

func TestEventsUnknownSession(t *testing.T) {
	srv, _ := setupServer(t)
	resp, err := http.Get(srv.URL + "/sessions/missing/events")
	if err != nil {
		t.Fatalf("request err: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
