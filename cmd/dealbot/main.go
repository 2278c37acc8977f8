package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dealbot/internal/agent"
	"dealbot/internal/bus"
	"dealbot/internal/channel"
	"dealbot/internal/config"
	"dealbot/internal/domain"
	"dealbot/internal/metrics"
	"dealbot/internal/provider"
	"dealbot/internal/store"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	// Local .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "dealbot",
		Short: "Dealbot: chat assistant for coupon codes and deals",
		Long:  "Dealbot answers chat questions about brand coupons and deals over HTTP, WebSocket, CLI, and Telegram.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.dealbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

func applyLogLevel(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore builds the configured persistence backend.
func openStore(cfg *config.Config) (domain.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(cfg.Store.Postgres, logger)
	case "sqlite", "":
		return store.NewSQLiteStore(config.ExpandPath(cfg.Store.SQLite.DBPath), logger)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// buildResponder wires the conversation engine from config.
func buildResponder(cfg *config.Config, st domain.Store, messageBus domain.MessageBus, m *metrics.Metrics) (*agent.Responder, error) {
	factory := provider.NewFactory(cfg, logger)
	gen, err := factory.DefaultGenerator()
	if err != nil {
		return nil, fmt.Errorf("default provider: %w", err)
	}

	formatter := agent.NewDealFormatter(time.Duration(cfg.Assistant.UrgencyWindowHours) * time.Hour)
	composer := agent.NewComposer(agent.ComposerConfig{
		Generator:       gen,
		Formatter:       formatter,
		Logger:          logger,
		Temperature:     cfg.Assistant.Temperature,
		MaxOutputTokens: cfg.Assistant.MaxOutputTokens,
		Timeout:         time.Duration(cfg.Assistant.GenerateTimeoutSeconds) * time.Second,
	})

	return agent.NewResponder(agent.ResponderConfig{
		Store:       st,
		Composer:    composer,
		Bus:         messageBus,
		Logger:      logger,
		Metrics:     m,
		Concurrency: cfg.General.MaxConcurrentTurns,
	}), nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start all enabled channels and the responder",
		Long:  "Starts the HTTP API, WebSocket server, and Telegram bot (as enabled) plus the responder. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	applyLogLevel(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(prometheus.DefaultRegisterer)
	}

	responder, err := buildResponder(cfg, st, messageBus, m)
	if err != nil {
		return err
	}
	go responder.Run(ctx)

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, messageBus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var webCh *channel.Web
	if cfg.Channels.Web.Enabled {
		webCh = channel.NewWeb(channel.WebConfig{
			Host:         cfg.Channels.Web.Host,
			Port:         cfg.Channels.Web.Port,
			Responder:    responder,
			Store:        st,
			Logger:       logger,
			Version:      version,
			ServeMetrics: cfg.Metrics.Enabled,
		})
		go func() {
			if err := webCh.Start(ctx, messageBus); err != nil {
				logger.Error("web channel error", "err", err)
			}
		}()
	}

	var wsCh *channel.WebSocketChannel
	if cfg.Channels.WebSocket.Enabled {
		wsCh = channel.NewWebSocketChannel(channel.WSConfig{
			Port:    cfg.Channels.WebSocket.Port,
			Path:    cfg.Channels.WebSocket.Path,
			Logger:  logger,
			Metrics: m,
		})
		go func() {
			if err := wsCh.Start(ctx, messageBus); err != nil {
				logger.Error("websocket channel error", "err", err)
			}
		}()
	}

	logger.Info("dealbot started. Press Ctrl+C to stop.", "version", version)

	<-ctx.Done()
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			telegramCh.Stop()
		}
		if webCh != nil {
			webCh.Stop()
		}
		if wsCh != nil {
			wsCh.Stop()
		}
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI)",
		RunE:  runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	applyLogLevel(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(100, logger)
	defer messageBus.Close()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	responder, err := buildResponder(cfg, st, messageBus, nil)
	if err != nil {
		return err
	}
	go responder.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{Logger: logger})
	return cliCh.Start(ctx, messageBus)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Load brands and deals from a YAML fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			applyLogLevel(cfg)

			sf, err := store.LoadSeedFile(args[0])
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			target, ok := st.(store.SeedTarget)
			if !ok {
				return fmt.Errorf("store driver %s does not support seeding", cfg.Store.Driver)
			}

			applied, skipped, err := store.ApplySeed(cmd.Context(), target, sf, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d deals (%d skipped) from %s\n", applied, skipped, args[0])
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			factory := provider.NewFactory(cfg, logger)
			gen, err := factory.DefaultGenerator()
			if err != nil {
				logger.Info("provider", "available", false, "err", err)
				return nil
			}
			if err := gen.Healthy(ctx); err != nil {
				logger.Info("provider", "name", gen.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("provider", "name", gen.Name(), "healthy", true)
			}

			st, err := openStore(cfg)
			if err != nil {
				logger.Info("store", "driver", cfg.Store.Driver, "ok", false, "err", err)
				return nil
			}
			defer st.Close()

			brands, err := st.ListBrands(ctx)
			if err != nil {
				logger.Info("store", "driver", cfg.Store.Driver, "ok", false, "err", err)
				return nil
			}
			logger.Info("store", "driver", cfg.Store.Driver, "ok", true, "brands", len(brands))
			return nil
		},
	}
}
