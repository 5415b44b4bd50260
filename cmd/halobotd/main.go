package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiPkg "github.com/halobot-io/halobot/internal/api"
	"github.com/halobot-io/halobot/internal/attachment"
	"github.com/halobot-io/halobot/internal/bot"
	"github.com/halobot-io/halobot/internal/config"
	"github.com/halobot-io/halobot/internal/connector"
	slackconn "github.com/halobot-io/halobot/internal/connector/slack"
	"github.com/halobot-io/halobot/internal/connector/telegram"
	"github.com/halobot-io/halobot/internal/halo"
	"github.com/halobot-io/halobot/internal/journal"
	"github.com/halobot-io/halobot/internal/logbuf"
	"github.com/halobot-io/halobot/internal/provider"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// Set up logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	// Load config (2 modes: file, env)
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("halobotd starting")

	// 1. Initialize LLM provider
	prov, err := buildProvider(cfg.Providers["default"])
	if err != nil {
		logger.Error("failed to init provider", "error", err)
		os.Exit(1)
	}
	logger.Info("provider initialized", "name", prov.Name())

	// 2. Halo gateway
	gateway := halo.New(halo.Config{
		AuthURL:      cfg.Halo.AuthURL,
		TicketURL:    cfg.Halo.TicketURL,
		WebBaseURL:   cfg.Halo.WebBaseURL,
		ClientID:     cfg.Halo.ClientID,
		ClientSecret: cfg.Halo.ClientSecret,
	})

	// 3. Submission journal (optional)
	var store journal.Store
	if cfg.Journal.Path != "" {
		store, err = journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.Journal.Path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("journal opened", "path", cfg.Journal.Path)
	}

	// 4. Bot
	b := bot.New(prov, gateway, attachment.NewHTTPFetcher(), logger.With("component", "bot"))
	b.Journal = store
	if prompt, err := cfg.SystemPrompt(); err != nil {
		logger.Error("failed to read system prompt", "error", err)
		os.Exit(1)
	} else if prompt != "" {
		b.SystemPrompt = prompt
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Session janitor
	janitor, err := bot.NewJanitor(b, cfg.Session.SweepSchedule, time.Duration(cfg.Session.TTLMinutes)*time.Minute)
	if err != nil {
		logger.Error("failed to init janitor", "error", err)
		os.Exit(1)
	}
	go safeGo(logger, "janitor", func() { janitor.Start(ctx) })

	// Connectors deliver every inbound turn to the bot.
	handle := func(ctx context.Context, msg connector.InboundMessage) (string, error) {
		return b.Process(ctx, msg.Channel, msg.ChatID, msg.Text, msg.Attachments)
	}

	// 6. Start connectors
	if cfg.Connectors.Telegram != nil {
		tgConn, err := telegram.New(
			telegram.Config{
				Token:     cfg.Connectors.Telegram.Token,
				AllowFrom: cfg.Connectors.Telegram.AllowFrom,
			},
			handle,
			b,
			logger.With("connector", "telegram"),
		)
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
		logger.Info("telegram connector started")
	}

	if cfg.Connectors.Slack != nil {
		slConn, err := slackconn.New(
			slackconn.Config{
				BotToken: cfg.Connectors.Slack.BotToken,
				AppToken: cfg.Connectors.Slack.AppToken,
				Channels: cfg.Connectors.Slack.Channels,
			},
			handle,
			logger.With("connector", "slack"),
		)
		if err != nil {
			logger.Error("failed to init slack connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "slack", func() { slConn.Start(ctx) })
		logger.Info("slack connector started")
	}

	// 7. Start API server
	var records apiPkg.JournalLister
	if store != nil {
		records = store
	}
	apiSrv := apiPkg.NewServer(b, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), logBuf, records)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	// 8. Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("halobotd stopped")
}

// buildProvider constructs the configured LLM provider.
func buildProvider(pcfg config.ProviderConfig) (provider.Provider, error) {
	switch pcfg.Type {
	case "azure":
		var opts []provider.AzureOption
		if pcfg.APIVersion != "" {
			opts = append(opts, provider.WithAzureAPIVersion(pcfg.APIVersion))
		}
		return provider.NewAzure(pcfg.BaseURL, pcfg.Deployment, pcfg.APIKey, opts...), nil
	case "anthropic":
		var opts []provider.AnthropicOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithAnthropicBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithAnthropicModel(pcfg.Model))
		}
		return provider.NewAnthropic(pcfg.APIKey, opts...), nil
	case "", "openai":
		var opts []provider.OpenAIOption
		if pcfg.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pcfg.BaseURL))
		}
		if pcfg.Model != "" {
			opts = append(opts, provider.WithModel(pcfg.Model))
		}
		return provider.NewOpenAI(pcfg.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pcfg.Type)
	}
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
