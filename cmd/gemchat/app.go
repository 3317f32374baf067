package main

import (
	"fmt"

	"gemchat/internal/config"
	"gemchat/internal/logger"
	"gemchat/internal/services"
	"gemchat/internal/storage"
	"gemchat/pkg/chattypes"
)

// app is the set of services one command works with.
type app struct {
	cfg         *config.Config
	persistence *services.PersistenceService
	chat        *services.ChatSessionService
}

// openApp opens the configured store and loads the stored sessions.
// client may be nil for commands that never send.
func openApp(cfg *config.Config, client chattypes.ModelClient, opts ...services.ChatSessionOption) (*app, error) {
	slot, err := storage.Open(cfg.Store, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	persistence := services.NewPersistenceService(slot)

	opts = append([]services.ChatSessionOption{services.WithPersistence(persistence)}, opts...)
	chat := services.NewChatSessionService(client, opts...)
	chat.Load()

	logger.Debug("Services initialized", "store", cfg.Store, "data_dir", cfg.DataDir)
	return &app{cfg: cfg, persistence: persistence, chat: chat}, nil
}

// mustModelClient builds the configured provider client. A missing credential is fatal.
func mustModelClient(cfg *config.Config) chattypes.ModelClient {
	client, err := services.NewModelClient(cfg)
	if err != nil {
		logger.Fatal("Failed to create model client", "provider", cfg.Provider, "error", err)
	}
	logger.Info("Model client ready", "provider", client.GetProviderName(), "model", client.GetModelName())
	return client
}

func (a *app) Close() {
	if err := a.persistence.Close(); err != nil {
		logger.Warn("Failed to close store", "error", err)
	}
}
