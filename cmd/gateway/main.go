package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/minusai/assistant-gateway/internal/assistant"
	"github.com/minusai/assistant-gateway/internal/bot"
	"github.com/minusai/assistant-gateway/internal/orchestrator"
	"github.com/minusai/assistant-gateway/internal/session"
	"github.com/minusai/assistant-gateway/internal/speech"
	"github.com/minusai/assistant-gateway/internal/storage"
	"github.com/minusai/assistant-gateway/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize transcript archive
	var archive storage.Archive
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory transcript archive")
		archive = storage.NewMemoryArchive()
	} else {
		logger.Info("Using PostgreSQL transcript archive")
		archive, err = storage.NewPostgresArchive(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize transcript archive", zap.Error(err))
		}
	}
	defer archive.Close()

	sessions := session.NewManager(cfg.Gateway.WelcomeText)

	// Initialize the Telegram surface
	b, err := bot.New(cfg.Telegram.Token, sessions, archive, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	deps := orchestrator.Deps{
		Dispatcher: assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.Timeout()),
		Navigator:  b,
		Notifier:   b,
		Presenter:  b,
		Pause: func(ctx context.Context) {
			select {
			case <-time.After(cfg.Gateway.ActionPause()):
			case <-ctx.Done():
			}
		},
		Logger: logger,
	}

	if cfg.Speech.Enabled {
		gateway := speech.NewGateway(
			cfg.Speech.APIKey,
			cfg.Speech.TranscribeModel,
			cfg.Speech.SpeechModel,
			cfg.Speech.Voice,
			logger,
		)
		deps.Transcriber = gateway
		deps.Synthesizer = gateway
		deps.Player = b
	}

	b.Bind(orchestrator.New(deps))

	// Start the bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
