package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/logging"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
)

// ArkRelay sends the conversation through an eino chain backed by an Ark chat model.
type ArkRelay struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	prompts   *PromptBuilder
	logger    *zap.Logger
	configErr *ConfigurationError
}

// NewArkRelay builds the chat model from cfg.Ark. Missing credentials produce a relay whose
// every call returns ConfigurationError.
func NewArkRelay(ctx context.Context, cfg config.RelayConfig, prompts *PromptBuilder, logger *zap.Logger) (*ArkRelay, error) {
	if !cfg.Ark.Enabled() {
		if logger == nil {
			logger = zap.NewNop()
		}
		return &ArkRelay{
			prompts:   prompts,
			logger:    logger.Named("relay.ark"),
			configErr: &ConfigurationError{Reason: "ARK_MODEL and ARK_API_KEY (or an AK/SK pair) are required"},
		}, nil
	}

	chatModel, err := cfg.Ark.NewChatModel(ctx, cfg.MaxTokens, cfg.Temperature, cfg.TopP)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewArkRelayWithModel(ctx, chatModel, prompts, logger)
}

// NewArkRelayWithModel compiles the prompt chain around an existing chat model.
func NewArkRelayWithModel(ctx context.Context, chatModel model.ChatModel, prompts *PromptBuilder, logger *zap.Logger) (*ArkRelay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkRelay{
		chain:   runnable,
		prompts: prompts,
		logger:  logger.Named("relay.ark"),
	}, nil
}

// Relay runs the chain once and wraps the reply in the fixed envelope.
func (r *ArkRelay) Relay(ctx context.Context, history []chat.HistoryEntry, meta character.Descriptor) (chat.RelayResponse, error) {
	if r.configErr != nil {
		return chat.RelayResponse{}, r.configErr
	}
	if err := ValidateHistory(history); err != nil {
		return chat.RelayResponse{}, err
	}

	defer logging.LogDuration(ctx, r.logger, "ark_relay")()

	input := map[string]any{
		"system":  r.prompts.SystemPrompt(meta),
		"history": toSchemaMessages(history),
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		r.logger.Warn("ark chain failed", zap.Error(err))
		return chat.RelayResponse{}, &TransportError{Err: errors.Wrap(err, "run ark chain")}
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return chat.RelayResponse{}, &MalformedResponse{Reason: "model returned no content"}
	}

	r.logger.Info("relay completed",
		zap.Int("history", len(history)),
		zap.Int("reply_length", len(response.Content)),
	)
	return chat.NewRelayResponse(response.Content), nil
}

func toSchemaMessages(history []chat.HistoryEntry) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, entry := range history {
		switch entry.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	return messages
}
