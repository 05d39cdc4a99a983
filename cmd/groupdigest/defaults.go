package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// LLM
	viper.SetDefault("llm.endpoint", "https://generativelanguage.googleapis.com")
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.max_output_tokens", 4096)
	viper.SetDefault("llm.interactive_temperature", 0.4)
	viper.SetDefault("llm.scheduled_temperature", 0.5)

	// Store
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.auto_migrate", true)
	viper.SetDefault("store.pool.max_open_conns", 1)
	viper.SetDefault("store.pool.max_idle_conns", 1)
	viper.SetDefault("store.pool.conn_max_lifetime", time.Duration(0))

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.api_base", "https://api.telegram.org")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)

	// Digest
	viper.SetDefault("digest.link_prefix", "引用")
	viper.SetDefault("digest.ask_context_size", 1000)
	viper.SetDefault("digest.query_limit", 50)
	viper.SetDefault("digest.retain_per_chat", 3000)
	viper.SetDefault("digest.activity_window", 24*time.Hour)
	viper.SetDefault("digest.min_active_messages", 10)
	viper.SetDefault("digest.min_digest_messages", 10)
	viper.SetDefault("digest.concurrency", 2)
	viper.SetDefault("digest.interval", 24*time.Hour)
	viper.SetDefault("digest.enabled", true)

	// Serve listener (health + metrics)
	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8790)
}
