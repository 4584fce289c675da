package character

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/pkg/utils"
)

// Handler 角色目录的HTTP处理器
type Handler struct {
	catalog *character.Catalog
}

// New 创建角色处理器
func New(catalog *character.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

type catalogResponse struct {
	Realms        []character.Realm       `json:"realms"`
	Species       []character.Species     `json:"species"`
	Personalities []character.Personality `json:"personalities"`
}

type characterResponse struct {
	Character   character.Descriptor `json:"character"`
	Description string               `json:"description"`
	Known       bool                 `json:"known"`
}

// RegisterRoutes 注册角色相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.handleCatalog)
	r.Post("/characters", h.handlePreview)
}

// handleCatalog 返回可选的领域、物种与性格
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, catalogResponse{
		Realms:        h.catalog.Realms(),
		Species:       h.catalog.Species(),
		Personalities: h.catalog.Personalities(),
	})
}

// handlePreview 规范化角色并生成创建页的描述文本
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var d character.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(d.Species) == "" {
		utils.RespondError(w, http.StatusBadRequest, "species is required")
		return
	}

	d = h.catalog.Normalize(d)
	utils.RespondJSON(w, http.StatusOK, characterResponse{
		Character:   d,
		Description: h.catalog.Describe(d),
		Known:       h.catalog.Knows(d),
	})
}
