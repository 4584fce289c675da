package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
)

// Relayer forwards one conversation to a completion endpoint and returns the normalized reply.
// Implementations are stateless per call and safe for concurrent use.
type Relayer interface {
	Relay(ctx context.Context, history []chat.HistoryEntry, meta character.Descriptor) (chat.RelayResponse, error)
}

// New builds the relay selected by cfg.Provider.
func New(ctx context.Context, cfg config.RelayConfig, catalog *character.Catalog, logger *zap.Logger) (Relayer, error) {
	prompts := NewPromptBuilder(catalog)

	switch cfg.Provider {
	case "", config.ProviderHTTP:
		return NewHTTPRelay(cfg, prompts, logger), nil
	case config.ProviderArk:
		return NewArkRelay(ctx, cfg, prompts, logger)
	default:
		return nil, fmt.Errorf("unknown relay provider %q", cfg.Provider)
	}
}

// ValidateHistory checks the relay input contract.
func ValidateHistory(history []chat.HistoryEntry) error {
	if len(history) == 0 {
		return ErrInvalidHistory
	}
	if history[len(history)-1].Role != chat.RoleUser {
		return ErrInvalidHistory
	}
	return nil
}
