package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"trading-alert-engine/config"
	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/api"
	"trading-alert-engine/internal/auth"
	"trading-alert-engine/internal/engine"
	"trading-alert-engine/internal/evaluator"
	"trading-alert-engine/internal/events"
	"trading-alert-engine/internal/indicators"
	"trading-alert-engine/internal/logging"
	"trading-alert-engine/internal/market"
	"trading-alert-engine/internal/notification"
	"trading-alert-engine/internal/orderblock"
	"trading-alert-engine/internal/secrets"
	"trading-alert-engine/internal/session"
	"trading-alert-engine/internal/structure"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Msg("Alert engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	// Optional Vault-backed secrets for delivery credentials
	if cfg.VaultConfig.Enabled {
		secretStore, err := secrets.NewClient(secrets.Config{
			Enabled:    true,
			Address:    cfg.VaultConfig.Address,
			Token:      cfg.VaultConfig.Token,
			SecretPath: cfg.VaultConfig.SecretPath,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize secret store")
		}
		resolveDeliverySecrets(ctx, secretStore, cfg, logger)
	}

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize alert store")
	}

	registry, err := alert.NewRegistry(ctx, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load alert registry")
	}
	logger.Info().Int("alerts", len(registry.List(false, ""))).Msg("Alert registry loaded")

	provider, stream := buildProvider(cfg, logger)
	if stream != nil {
		if err := stream.Start(); err != nil {
			logger.Warn().Err(err).Msg("Ticker stream failed to start, using REST quotes only")
		} else {
			defer stream.Stop()
		}
	}

	timeframes := []string{cfg.EngineConfig.BaseTimeframe, cfg.EngineConfig.HTFTimeframe}
	bundles := indicators.NewCalculator(provider, timeframes, cfg.EngineConfig.BarCount)
	analyzer := structure.NewAnalyzer(0)
	sessions := session.NewClassifier()
	validator := orderblock.NewValidator(cfg.OrderBlockConfig, logger)
	dispatcher := evaluator.NewDispatcher(cfg.EvaluatorConfig, validator, nil, logger)

	var sink engine.Sink
	if cfg.NotificationConfig.Enabled {
		manager := notification.NewManager()
		if cfg.NotificationConfig.Telegram.Enabled {
			manager.AddNotifier(notification.NewTelegramNotifier(cfg.NotificationConfig.Telegram))
		}
		if cfg.NotificationConfig.Webhook.Enabled {
			manager.AddNotifier(notification.NewWebhookNotifier(cfg.NotificationConfig.Webhook))
		}
		sink = manager
		logger.Info().Msg("Notification manager initialized")
	}

	eng := engine.New(
		cfg.EngineConfig,
		registry,
		provider,
		bundles,
		analyzer,
		sessions,
		dispatcher,
		sink,
		eventBus,
		logger,
	)
	eng.Start()
	defer eng.Stop()

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
		server = api.NewServer(api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: true,
			AdminTokenHash: cfg.AuthConfig.AdminTokenHash,
		}, registry, eng, eventBus, jwtManager, logger)

		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("HTTP server error")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	logger.Info().Msg("Alert engine stopped")
}

// buildStore picks the persistence backend from config
func buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (alert.Store, error) {
	switch cfg.StoreConfig.Backend {
	case "redis":
		return alert.NewRedisStore(cfg.StoreConfig.Redis, logger)
	case "postgres":
		return alert.NewPostgresStore(ctx, cfg.StoreConfig.Postgres.URL, logger)
	default:
		return alert.NewFileStore(cfg.StoreConfig.FilePath, logger), nil
	}
}

// buildProvider assembles the market data stack: mock client in mock
// mode, otherwise a cached REST client with streamed quotes layered on
// top when symbols are pre-configured.
func buildProvider(cfg *config.Config, logger zerolog.Logger) (market.Provider, *market.TickerStream) {
	if cfg.MarketConfig.MockMode {
		logger.Warn().Msg("Mock market data enabled")
		return market.NewMockClient(), nil
	}

	var provider market.Provider = market.NewCachedProvider(market.NewClient(cfg.MarketConfig.BaseURL))

	if len(cfg.MarketConfig.Symbols) > 0 && cfg.MarketConfig.WSURL != "" {
		stream := market.NewTickerStream(cfg.MarketConfig.WSURL, cfg.MarketConfig.Symbols, logger)
		return market.NewStreamProvider(provider, stream, 0), stream
	}
	return provider, nil
}

// resolveDeliverySecrets fills notification credentials from Vault when
// the config leaves them blank
func resolveDeliverySecrets(ctx context.Context, store *secrets.Client, cfg *config.Config, logger zerolog.Logger) {
	if cfg.NotificationConfig.Telegram.Enabled && cfg.NotificationConfig.Telegram.BotToken == "" {
		if token, err := store.Get(ctx, "telegram_bot_token"); err == nil {
			cfg.NotificationConfig.Telegram.BotToken = token
		} else {
			logger.Warn().Err(err).Msg("Telegram bot token not found in vault")
		}
	}
	if cfg.NotificationConfig.Webhook.Enabled && cfg.NotificationConfig.Webhook.URL == "" {
		if url, err := store.Get(ctx, "webhook_url"); err == nil {
			cfg.NotificationConfig.Webhook.URL = url
		} else {
			logger.Warn().Err(err).Msg("Webhook URL not found in vault")
		}
	}
}
