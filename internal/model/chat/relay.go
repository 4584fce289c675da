package chat

import "github.com/zhouzirui/neon-ghost/backend/internal/model/character"

// RelayRequest is the body accepted by the chat proxy endpoint.
type RelayRequest struct {
	Messages      []HistoryEntry       `json:"messages"`
	CharacterMeta character.Descriptor `json:"characterMeta"`
}

// RelayResponse is the fixed envelope every successful relay call returns.
type RelayResponse struct {
	Choices []Choice `json:"choices"`
}

// Choice wraps a single reply.
type Choice struct {
	Message ChoiceMessage `json:"message"`
}

// ChoiceMessage holds the reply text.
type ChoiceMessage struct {
	Content string `json:"content"`
}

// NewRelayResponse wraps content in the fixed envelope.
func NewRelayResponse(content string) RelayResponse {
	return RelayResponse{Choices: []Choice{{Message: ChoiceMessage{Content: content}}}}
}

// Content returns the first choice's text, or "" when the envelope is empty.
func (r RelayResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
