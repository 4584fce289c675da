package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
)

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"invalid-history": relay.ErrInvalidHistory,
		"configuration":   &relay.ConfigurationError{Reason: "no token"},
		"upstream-429":    &relay.UpstreamError{Status: 429},
		"malformed":       &relay.MalformedResponse{Reason: "no content"},
		"transport":       &relay.TransportError{Err: errors.New("dial")},
		"unknown":         errors.New("other"),
	}
	for want, err := range cases {
		if got := classify(err); got != want {
			t.Fatalf("classify(%v) = %s, want %s", err, got, want)
		}
	}
}

func TestReportPrintsUpstreamBody(t *testing.T) {
	var buf bytes.Buffer
	err := report(&buf, chat.RelayResponse{}, &relay.UpstreamError{Status: 503, Body: "overloaded"}, time.Second)
	if err == nil {
		t.Fatal("expected error to pass through")
	}
	out := buf.String()
	if !strings.Contains(out, "[upstream-503]") || !strings.Contains(out, "upstream body: overloaded") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestReportPrintsReply(t *testing.T) {
	var buf bytes.Buffer
	if err := report(&buf, chat.NewRelayResponse("hi there"), nil, 1500*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "hi there\n") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("provider", "ARK")
	viper.Set("token", "flag-token")

	cfg := config.RelayConfig{Provider: config.ProviderHTTP, APIToken: "env-token", Endpoint: "https://example.test"}
	applyOverrides(&cfg)

	if cfg.Provider != config.ProviderArk || cfg.APIToken != "flag-token" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Endpoint != "https://example.test" {
		t.Fatalf("endpoint should be untouched: %s", cfg.Endpoint)
	}
}
