package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"agenda/internal/agent"
	"agenda/internal/calendar"
	"agenda/internal/chat"
	"agenda/internal/config"
	"agenda/internal/llm"
	"agenda/internal/llm/mistral"
	"agenda/internal/llm/openai"
	"agenda/internal/logger"
	"agenda/internal/mcp"
	"agenda/internal/secret"
	"agenda/internal/store"
	"agenda/internal/tool"
	"agenda/internal/tool/calendartool"
	"agenda/internal/tracing"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	calendar *calendar.Client
	registry *tool.Registry
	chat     *chat.Service
	closers  []func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadWithDefaults()
}

func newLogger(cfg *config.Config, w io.Writer) *logger.Logger {
	level := logger.LevelInfo
	if verbose || cfg.Log.Verbose {
		level = logger.LevelDebug
	}
	return logger.New(w, logger.Options{Level: level, NoColor: noColor || cfg.Log.NoColor})
}

func newApp(ctx context.Context, logOutput io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: newLogger(cfg, logOutput)}

	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdownTracing)

	a.store, err = store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.store.Close() })

	a.registry = tool.NewRegistry()
	if err := a.setupCalendar(); err != nil {
		return err
	}

	if len(cfg.MCP.Servers) > 0 {
		manager := mcp.NewManager(a.registry, mcp.StdioDialer, a.log)
		a.closers = append(a.closers, func(context.Context) error { return manager.Close() })
		if err := manager.Initialize(ctx, cfg.MCP); err != nil {
			a.log.Warn("MCP tools unavailable", "error", err)
		}
	}

	client, err := newLLMClient(cfg.LLM, a.log)
	if err != nil {
		return err
	}

	orchestrator := agent.NewOrchestrator(client, tool.NewExecutor(a.registry), agent.Config{
		MaxRounds:   cfg.LLM.MaxRounds,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, a.log)

	a.chat = chat.NewService(a.store, orchestrator, chat.Config{
		SystemPrompt:   chat.SystemPrompt(cfg.Chat.SystemPrompt, a.registry.GetToolBestPractices()),
		FallbackAnswer: cfg.Chat.FallbackAnswer,
	}, a.log)

	a.log.Info("agenda ready",
		"provider", client.Provider(),
		"model", client.Model(),
		"tools", a.registry.Len(),
		"calendar", a.calendar != nil,
	)
	return nil
}

// setupCalendar wires Google Calendar when an OAuth client is configured.
func (a *app) setupCalendar() error {
	cc := a.cfg.Calendar
	if cc.ClientID == "" || cc.ClientSecret == "" {
		a.log.Warn("google calendar disabled: no OAuth client configured")
		return nil
	}

	box, err := secret.New(a.cfg.Security.EncryptionKey)
	if err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	a.calendar = calendar.New(calendar.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		RedirectURL:  cc.RedirectURL,
		AuthURL:      cc.AuthURL,
		TokenURL:     cc.TokenURL,
		APIEndpoint:  cc.APIEndpoint,
	}, a.store, box, a.log)

	return calendartool.Register(a.registry, a.calendar, calendartool.Clock{Location: loc})
}

func newLLMClient(cfg config.LLMConfig, log *logger.Logger) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.api_key is required")
	}

	var client llm.Client
	switch cfg.Provider {
	case "openai":
		client = openai.NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
	default:
		client = mistral.NewClient(cfg.APIKey, cfg.Model,
			mistral.WithBaseURL(cfg.BaseURL),
			mistral.WithHTTPClient(llm.NewHTTPClient(cfg.ConnectTimeout, cfg.ResponseTimeout)),
		)
	}
	return llm.NewBreakerClient(client, cfg.Breaker, log.Logger), nil
}

// Close releases components in reverse construction order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
