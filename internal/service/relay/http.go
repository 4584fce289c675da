package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/logging"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
)

const maxUpstreamBody = 4 << 20

// upstreamRequest is an OpenAI-style chat completion body with the character metadata
// passed through for endpoints that want it.
type upstreamRequest struct {
	Model         string                         `json:"model"`
	Messages      []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens     int                            `json:"max_tokens,omitempty"`
	Temperature   float32                        `json:"temperature,omitempty"`
	TopP          float32                        `json:"top_p,omitempty"`
	CharacterMeta character.Descriptor           `json:"characterMeta"`
}

// HTTPRelay posts the conversation to an OpenAI-compatible endpoint with a bearer token.
type HTTPRelay struct {
	endpoint    string
	token       string
	model       string
	maxTokens   int
	temperature float32
	topP        float32

	client     *http.Client
	prompts    *PromptBuilder
	extractors []Extractor
	logger     *zap.Logger
}

// HTTPOption customizes an HTTPRelay.
type HTTPOption func(*HTTPRelay)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPRelay) {
		r.client = client
	}
}

// WithExtractors overrides the envelope strategies.
func WithExtractors(extractors []Extractor) HTTPOption {
	return func(r *HTTPRelay) {
		r.extractors = extractors
	}
}

// NewHTTPRelay creates the relay. A missing token is not an error here: every call fails
// with ConfigurationError instead, so the rest of the service keeps running.
func NewHTTPRelay(cfg config.RelayConfig, prompts *PromptBuilder, logger *zap.Logger, opts ...HTTPOption) *HTTPRelay {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &HTTPRelay{
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		token:       strings.TrimSpace(cfg.APIToken),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		client:      &http.Client{Timeout: cfg.HTTPTimeout},
		prompts:     prompts,
		extractors:  DefaultExtractors,
		logger:      logger.Named("relay.http"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relay forwards history to the endpoint and normalizes the reply.
func (r *HTTPRelay) Relay(ctx context.Context, history []chat.HistoryEntry, meta character.Descriptor) (chat.RelayResponse, error) {
	if r.token == "" {
		return chat.RelayResponse{}, &ConfigurationError{Reason: "RELAY_API_TOKEN is not set"}
	}
	if r.endpoint == "" {
		return chat.RelayResponse{}, &ConfigurationError{Reason: "RELAY_ENDPOINT is not set"}
	}
	if err := ValidateHistory(history); err != nil {
		return chat.RelayResponse{}, err
	}

	defer logging.LogDuration(ctx, r.logger, "http_relay")()

	payload, err := json.Marshal(r.buildRequest(history, meta))
	if err != nil {
		return chat.RelayResponse{}, errors.Wrap(err, "encode upstream request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return chat.RelayResponse{}, &ConfigurationError{Reason: "invalid RELAY_ENDPOINT: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("upstream request failed", zap.Error(err))
		return chat.RelayResponse{}, &TransportError{Err: errors.Wrap(err, "post to upstream")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return chat.RelayResponse{}, &TransportError{Err: errors.Wrap(err, "read upstream body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.logger.Warn("upstream rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 512)),
		)
		return chat.RelayResponse{}, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	content, err := ExtractContent(body, r.extractors)
	if err != nil {
		r.logger.Warn("upstream reply not understood", zap.Error(err))
		return chat.RelayResponse{}, err
	}

	r.logger.Info("relay completed",
		zap.Int("history", len(history)),
		zap.Int("reply_length", len(content)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return chat.NewRelayResponse(content), nil
}

func (r *HTTPRelay) buildRequest(history []chat.HistoryEntry, meta character.Descriptor) upstreamRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: r.prompts.SystemPrompt(meta),
	})
	for _, entry := range history {
		role := openai.ChatMessageRoleUser
		if entry.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: entry.Content})
	}

	return upstreamRequest{
		Model:         r.model,
		Messages:      messages,
		MaxTokens:     r.maxTokens,
		Temperature:   r.temperature,
		TopP:          r.topP,
		CharacterMeta: meta,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
