package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/handler"
	"github.com/zhouzirui/neon-ghost/backend/internal/logging"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/conversation"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	catalog, err := character.DefaultCatalog()
	if err != nil {
		return err
	}

	relaySvc, err := relay.New(ctx, cfg.Relay, catalog, logger)
	if err != nil {
		return err
	}
	if cfg.Relay.APIToken == "" && cfg.Relay.Provider != config.ProviderArk {
		logger.Warn("RELAY_API_TOKEN is not set; every relay call will fail with a configuration error")
	}

	conversations := conversation.NewService(relaySvc, catalog, conversation.Config{
		TypingDelay: cfg.Session.TypingDelay,
		IdleTTL:     cfg.Session.IdleTTL,
		Logger:      logger,
	})

	router := handler.NewRouter(handler.Dependencies{
		Catalog:       catalog,
		Relay:         relaySvc,
		Conversations: conversations,
		Logger:        logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("neon ghost backend listening",
			zap.String("addr", srv.Addr),
			zap.String("relay_provider", cfg.Relay.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return conversations.Run(gctx, cfg.Session.SweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
