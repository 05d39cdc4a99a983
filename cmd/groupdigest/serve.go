package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Extas/telegram-summary-bot/digest"
	"github.com/Extas/telegram-summary-bot/ingest"
	"github.com/Extas/telegram-summary-bot/internal/telegramclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: long-poll updates, scheduled digests, health/metrics listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			me, err := a.telegram.GetMe(ctx)
			if err != nil {
				return err
			}
			a.logger.Info("bot_started", "username", me.Username, "id", me.ID)

			mux := http.NewServeMux()
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})
			mux.Handle("/metrics", promhttp.Handler())
			srv := newHealthServer(listenAddrFromViper(), mux)
			go func() {
				a.logger.Info("listener_started", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("listener_failed", "error", err.Error())
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			if viper.GetBool("digest.enabled") {
				go runDigestTicker(ctx, a, viper.GetDuration("digest.interval"))
			}

			b := &bot{
				app:         a,
				username:    me.Username,
				pollTimeout: viper.GetDuration("telegram.poll_timeout"),
			}
			b.run(ctx)
			a.logger.Info("bot_stopped")
			return nil
		},
	}
	return cmd
}

func runDigestTicker(ctx context.Context, a *app, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.service.RunCycle(ctx); err != nil {
				a.logger.Error("digest_cycle_failed", "error", err.Error())
			}
		}
	}
}

type bot struct {
	app         *app
	username    string
	pollTimeout time.Duration
	offset      int64
}

func (b *bot) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		updates, next, err := b.app.telegram.GetUpdates(ctx, b.offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.app.logger.Warn("poll_failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		b.offset = next
		for _, u := range updates {
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *bot) handleUpdate(ctx context.Context, u telegramclient.Update) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		return
	}

	command, arg, isCommand := parseCommand(msg.Text, b.username)
	group := msg.Chat.Type == "group" || msg.Chat.Type == "supergroup"

	if isCommand {
		if !group {
			if err := b.app.service.GroupOnlyHint(ctx, msg.Chat.ID); err != nil {
				b.app.logger.Warn("reply_failed", "chat_id", msg.Chat.ID, "error", err.Error())
			}
			return
		}
		b.handleCommand(ctx, msg.Chat.ID, command, arg)
		return
	}

	if !group {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	in := ingest.Incoming{
		ChatID:          msg.Chat.ID,
		MessageID:       msg.MessageID,
		TimestampMillis: msg.Date * 1000,
		ChatTitle:       msg.Chat.Title,
		Author:          telegramclient.DisplayName(msg),
		Text:            msg.Text,
	}
	if msg.ForwardOrigin != nil {
		in.IsForwarded = true
		in.ForwardedFrom = forwardOriginName(msg.ForwardOrigin)
	}
	if msg.ReplyTo != nil {
		in.ReplyToMessageID = msg.ReplyTo.MessageID
	}
	if err := b.app.ingest.Ingest(ctx, in); err != nil {
		b.app.logger.Error("ingest_failed",
			"chat_id", msg.Chat.ID,
			"message_id", msg.MessageID,
			"error", err.Error(),
		)
	}
}

func (b *bot) handleCommand(ctx context.Context, chatID int64, command, arg string) {
	var err error
	switch command {
	case "status":
		err = b.app.service.Status(ctx, chatID)
	case "query":
		err = b.app.service.Query(ctx, chatID, arg)
	case "ask":
		err = b.app.service.Ask(ctx, chatID, arg)
	case "summary":
		err = b.app.service.Summarize(ctx, chatID, arg)
	default:
		return
	}
	if err != nil {
		b.app.logger.Error("command_failed",
			"command", command,
			"chat_id", chatID,
			"kind", string(digest.Kind(err)),
			"error", err.Error(),
		)
	}
}

func forwardOriginName(o *telegramclient.MessageOrigin) string {
	if o == nil {
		return ""
	}
	if o.SenderChat != nil && strings.TrimSpace(o.SenderChat.Title) != "" {
		return strings.TrimSpace(o.SenderChat.Title)
	}
	if o.SenderUser != nil && strings.TrimSpace(o.SenderUser.FirstName) != "" {
		return strings.TrimSpace(o.SenderUser.FirstName)
	}
	return ""
}

// parseCommand splits "/summary@digest_bot 24h" into ("summary", "24h", true).
// Commands addressed to a different bot are ignored.
func parseCommand(text, botUsername string) (command, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, tail, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return "", "", false
	}
	name, mention, mentioned := strings.Cut(head, "@")
	if mentioned && botUsername != "" && !strings.EqualFold(mention, botUsername) {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(tail), true
}
