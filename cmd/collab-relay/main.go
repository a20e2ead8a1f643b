package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/livedevhub/collab-relay/internal/chatstore"
	"github.com/livedevhub/collab-relay/internal/server"
	"github.com/livedevhub/collab-relay/pkg/config"
	"github.com/livedevhub/collab-relay/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chats, closeStore, err := buildChatStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize chat store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	app := server.NewApp(logger, ctx, cfg, chats, prometheus.NewRegistry())
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func buildChatStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (chatstore.Store, func(), error) {
	if cfg.Chat.MongoURI == "" {
		logger.Info("Chat persistence disabled; messages will be relayed only")
		return chatstore.Nop{}, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := chatstore.NewMongoStore(connectCtx, cfg.Chat.MongoURI, cfg.Chat.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Chat persistence enabled", slog.String("database", cfg.Chat.Database))

	closeStore := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("Failed to close chat store", slog.Any("error", err))
		}
	}
	return store, closeStore, nil
}
