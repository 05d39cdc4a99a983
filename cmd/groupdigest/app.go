package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Extas/telegram-summary-bot/digest"
	"github.com/Extas/telegram-summary-bot/ingest"
	"github.com/Extas/telegram-summary-bot/internal/linkpreview"
	"github.com/Extas/telegram-summary-bot/internal/logutil"
	"github.com/Extas/telegram-summary-bot/internal/telegramclient"
	"github.com/Extas/telegram-summary-bot/providers/gemini"
	"github.com/Extas/telegram-summary-bot/store"
	"github.com/spf13/viper"
)

// app holds the wired components shared by the serve and digest commands.
type app struct {
	logger   *slog.Logger
	store    *store.Store
	telegram *telegramclient.Client
	service  *digest.Service
	ingest   *ingest.Service
}

func buildApp() (*app, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
	if token == "" {
		return nil, fmt.Errorf("missing telegram.bot_token (set via config or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
	}
	apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing llm.api_key (set via config or %s_LLM_API_KEY)", envPrefix)
	}

	st, err := store.Open(storeConfigFromViper())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client := gemini.New(viper.GetString("llm.endpoint"), apiKey)
	tg := telegramclient.New(nil, viper.GetString("telegram.api_base"), token)

	svc := digest.NewService(digestConfigFromViper(), st, client, tg, logger)
	ing := ingest.NewService(st, linkpreview.New(), logger)

	return &app{
		logger:   logger,
		store:    st,
		telegram: tg,
		service:  svc,
		ingest:   ing,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store_close_failed", "error", err.Error())
		}
	}
}

func storeConfigFromViper() store.Config {
	cfg := store.DefaultConfig()
	if v := strings.TrimSpace(viper.GetString("store.driver")); v != "" {
		cfg.Driver = v
	}
	cfg.DSN = strings.TrimSpace(viper.GetString("store.dsn"))
	cfg.AutoMigrate = viper.GetBool("store.auto_migrate")
	if v := viper.GetInt("store.pool.max_open_conns"); v > 0 {
		cfg.Pool.MaxOpenConns = v
	}
	if v := viper.GetInt("store.pool.max_idle_conns"); v > 0 {
		cfg.Pool.MaxIdleConns = v
	}
	if v := viper.GetDuration("store.pool.conn_max_lifetime"); v > 0 {
		cfg.Pool.ConnMaxLifetime = v
	}
	return cfg
}

func digestConfigFromViper() digest.Config {
	cfg := digest.DefaultConfig()
	if v := strings.TrimSpace(viper.GetString("llm.model")); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(viper.GetString("digest.link_prefix")); v != "" {
		cfg.LinkPrefix = v
	}
	if v := viper.GetInt("llm.max_output_tokens"); v > 0 {
		cfg.MaxOutputTokens = v
	}
	if v := viper.GetFloat64("llm.interactive_temperature"); v > 0 {
		cfg.InteractiveTemp = v
	}
	if v := viper.GetFloat64("llm.scheduled_temperature"); v > 0 {
		cfg.ScheduledTemp = v
	}
	if v := viper.GetInt("digest.ask_context_size"); v > 0 {
		cfg.AskContextSize = v
	}
	if v := viper.GetInt("digest.query_limit"); v > 0 {
		cfg.QueryLimit = v
	}
	if v := viper.GetInt("digest.retain_per_chat"); v > 0 {
		cfg.RetainPerChat = v
	}
	if v := viper.GetDuration("digest.activity_window"); v > 0 {
		cfg.ActivityWindow = v
	}
	if v := viper.GetInt("digest.min_active_messages"); v > 0 {
		cfg.MinActiveMessages = v
	}
	if v := viper.GetInt("digest.min_digest_messages"); v > 0 {
		cfg.MinDigestMessages = v
	}
	if v := viper.GetInt("digest.concurrency"); v > 0 {
		cfg.Concurrency = v
	}
	return cfg
}

func listenAddrFromViper() string {
	bind := strings.TrimSpace(viper.GetString("server.bind"))
	if bind == "" {
		bind = "127.0.0.1"
	}
	port := viper.GetInt("server.port")
	if port <= 0 {
		port = 8790
	}
	return fmt.Sprintf("%s:%d", bind, port)
}

func newHealthServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
