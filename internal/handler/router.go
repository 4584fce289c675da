package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	characterHandler "github.com/zhouzirui/neon-ghost/backend/internal/handler/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/handler/events"
	"github.com/zhouzirui/neon-ghost/backend/internal/handler/proxy"
	"github.com/zhouzirui/neon-ghost/backend/internal/handler/realtime"
	"github.com/zhouzirui/neon-ghost/backend/internal/handler/session"
	middlewarePkg "github.com/zhouzirui/neon-ghost/backend/internal/middleware"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
	"github.com/zhouzirui/neon-ghost/backend/pkg/utils"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Catalog       *character.Catalog
	Relay         relay.Relayer
	Conversations *conversation.Service
	Logger        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Conversations.Len(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		proxy.New(deps.Relay, logger).RegisterRoutes(api)
		characterHandler.New(deps.Catalog).RegisterRoutes(api)
		session.New(deps.Conversations).RegisterRoutes(api)
		events.New(deps.Conversations, logger).RegisterRoutes(api)
		realtime.NewWebSocketHandler(deps.Conversations, logger).RegisterRoutes(api)
	})

	return r
}
