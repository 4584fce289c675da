package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
	"github.com/zhouzirui/neon-ghost/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	conversations *conversation.Service
}

// New 创建会话处理器
func New(conversations *conversation.Service) *Handler {
	return &Handler{conversations: conversations}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleCloseSession)
		sr.Post("/messages", h.handleSubmit)
	})
}

// handleCreateSession 根据角色创建会话并返回带欢迎语的快照
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Character character.Descriptor `json:"character"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.conversations.CreateSession(r.Context(), payload.Character)
	switch {
	case errors.Is(err, conversation.ErrCharacterRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, conversation.ErrServiceClosed):
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session.Snapshot())
}

// handleGetSession 返回会话快照
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Snapshot())
}

// handleSubmit 提交用户输入；会话忙或输入为空时不被接受
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !session.Submit(payload.Content) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"accepted": false,
			"state":    session.State(),
		})
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"state":    session.State(),
	})
}

// handleCloseSession 销毁会话
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.conversations.CloseSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*conversation.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.conversations.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return session, true
}
