package proxy

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
	relayService "github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
	"github.com/zhouzirui/neon-ghost/backend/pkg/utils"
)

const (
	summaryBadRequest = "Bad request"
	summaryInternal   = "Internal server error"
)

// Handler 聊天中继的HTTP处理器
type Handler struct {
	relay  relayService.Relayer
	logger *zap.Logger
}

// New 创建中继处理器
func New(relay relayService.Relayer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		relay:  relay,
		logger: logger.Named("proxy"),
	}
}

// RegisterRoutes 注册中继路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

// handleChat 转发一次对话请求并返回统一格式的回复
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chat.RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondErrorDetail(w, http.StatusBadRequest, summaryBadRequest, "invalid request body")
		return
	}

	resp, err := h.relay.Relay(r.Context(), payload.Messages, payload.CharacterMeta)
	if err != nil {
		status := StatusFor(err)
		summary := summaryInternal
		if status == http.StatusBadRequest {
			summary = summaryBadRequest
		}
		if status >= http.StatusInternalServerError {
			h.logger.Warn("relay call failed", zap.Int("status", status), zap.Error(err))
		}
		utils.RespondErrorDetail(w, status, summary, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// StatusFor maps a relay error onto the HTTP status returned to callers.
func StatusFor(err error) int {
	var (
		configErr    *relayService.ConfigurationError
		upstreamErr  *relayService.UpstreamError
		malformedErr *relayService.MalformedResponse
		transportErr *relayService.TransportError
	)

	switch {
	case errors.Is(err, relayService.ErrInvalidHistory):
		return http.StatusBadRequest
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.As(err, &upstreamErr), errors.As(err, &malformedErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
