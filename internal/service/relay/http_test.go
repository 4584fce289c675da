package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
)

var testCharacter = character.Descriptor{
	Name:        "Byte",
	Realm:       "Void Station",
	Species:     "Neon Ghost",
	Personality: "Sassy",
	Age:         1850,
}

func helloHistory() []chat.HistoryEntry {
	return []chat.HistoryEntry{{Role: chat.RoleUser, Content: "Hello"}}
}

func newTestRelay(t *testing.T, endpoint, token string) *HTTPRelay {
	t.Helper()
	catalog, err := character.DefaultCatalog()
	require.NoError(t, err)

	cfg := config.RelayConfig{
		Endpoint:    endpoint,
		APIToken:    token,
		Model:       "test-model",
		MaxTokens:   300,
		Temperature: 0.7,
		TopP:        0.9,
	}
	return NewHTTPRelay(cfg, NewPromptBuilder(catalog), nil)
}

func upstream(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRelayFlatChoices(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{"choices":[{"message":{"content":"Hi there"}}]}`)
	r := newTestRelay(t, srv.URL, "secret")

	resp, err := r.Relay(context.Background(), helloHistory(), testCharacter)
	require.NoError(t, err)
	assert.Equal(t, chat.NewRelayResponse("Hi there"), resp)
}

func TestRelayNestedChoices(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{"data":[{"choices":[{"message":{"content":"Nested hi"}}]}]}`)
	r := newTestRelay(t, srv.URL, "secret")

	resp, err := r.Relay(context.Background(), helloHistory(), testCharacter)
	require.NoError(t, err)
	assert.Equal(t, "Nested hi", resp.Content())
}

func TestRelayBareString(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, `{"data":["  spaced reply \n"]}`)
	r := newTestRelay(t, srv.URL, "secret")

	resp, err := r.Relay(context.Background(), helloHistory(), testCharacter)
	require.NoError(t, err)
	assert.Equal(t, "  spaced reply \n", resp.Content(), "extraction must round-trip exactly")
}

func TestRelayUpstreamError(t *testing.T) {
	srv, _ := upstream(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`)
	r := newTestRelay(t, srv.URL, "secret")

	_, err := r.Relay(context.Background(), helloHistory(), testCharacter)
	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.Status)
	assert.Contains(t, upstreamErr.Body, "overloaded")
}

func TestRelayMalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>gateway</html>`,
		"empty choices": `{"choices":[]}`,
		"null content":  `{"choices":[{"message":{"content":null}}]}`,
		"empty data":    `{"data":[]}`,
		"blank text":    `{"data":["   "]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv, _ := upstream(t, http.StatusOK, body)
			r := newTestRelay(t, srv.URL, "secret")

			_, err := r.Relay(context.Background(), helloHistory(), testCharacter)
			var malformed *MalformedResponse
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestRelayMissingCredentialSkipsNetwork(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{"choices":[{"message":{"content":"unused"}}]}`)
	r := newTestRelay(t, srv.URL, "")

	_, err := r.Relay(context.Background(), helloHistory(), testCharacter)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestRelayTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := newTestRelay(t, url, "secret")
	_, err := r.Relay(context.Background(), helloHistory(), testCharacter)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr), "got %v", err)
}

func TestRelayRejectsInvalidHistory(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, `{}`)
	r := newTestRelay(t, srv.URL, "secret")

	_, err := r.Relay(context.Background(), nil, testCharacter)
	assert.ErrorIs(t, err, ErrInvalidHistory)

	_, err = r.Relay(context.Background(), []chat.HistoryEntry{
		{Role: chat.RoleUser, Content: "Hello"},
		{Role: chat.RoleAssistant, Content: "Hi"},
	}, testCharacter)
	assert.ErrorIs(t, err, ErrInvalidHistory)
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestRelaySendsBearerAndPersona(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	r := newTestRelay(t, srv.URL, "secret")
	history := []chat.HistoryEntry{
		{Role: chat.RoleAssistant, Content: "[SYSTEM INIT] welcome"},
		{Role: chat.RoleUser, Content: "Hello"},
	}
	_, err := r.Relay(context.Background(), history, testCharacter)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "test-model", gotBody["model"])
	assert.EqualValues(t, 300, gotBody["max_tokens"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Contains(t, system["content"], `named "Byte"`)
	last := messages[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "Hello", last["content"])

	meta, ok := gotBody["characterMeta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Void Station", meta["realm"])
}

func TestExtractContentOrder(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"flat"}}],"data":["bare"]}`)
	content, err := ExtractContent(body, DefaultExtractors)
	require.NoError(t, err)
	assert.Equal(t, "flat", content)

	content, err = ExtractContent([]byte(`{"choices":[],"data":["bare"]}`), DefaultExtractors)
	require.NoError(t, err)
	assert.Equal(t, "bare", content)
}
