// Package ingest writes group messages into the durable log, rewriting
// content so that forwarding and reply provenance and link previews
// survive as plain text the summarizer can use.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Extas/telegram-summary-bot/internal/linkpreview"
	"github.com/Extas/telegram-summary-bot/internal/metrics"
	"github.com/Extas/telegram-summary-bot/store"
)

const fallbackName = "anonymous"

type Upserter interface {
	Upsert(ctx context.Context, m store.Message) error
}

// Incoming is one message as the chat platform delivered it, already
// reduced to the fields the log cares about.
type Incoming struct {
	ChatID           int64
	MessageID        int64
	TimestampMillis  int64
	ChatTitle        string
	Author           string
	Text             string
	ForwardedFrom    string
	IsForwarded      bool
	ReplyToMessageID int64
}

type Service struct {
	store    Upserter
	previews *linkpreview.Client
	logger   *slog.Logger
}

func NewService(st Upserter, previews *linkpreview.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, previews: previews, logger: logger}
}

// Ingest rewrites and stores one message. Re-delivery of the same
// (chat, message id) pair, including edits, overwrites the earlier row.
func (s *Service) Ingest(ctx context.Context, in Incoming) error {
	content := s.rewrite(ctx, in)

	author := strings.TrimSpace(in.Author)
	if author == "" {
		author = fallbackName
	}
	title := strings.TrimSpace(in.ChatTitle)
	if title == "" {
		title = fallbackName
	}

	err := s.store.Upsert(ctx, store.Message{
		ID:        store.MessageKey(in.ChatID, in.MessageID),
		ChatID:    in.ChatID,
		Timestamp: in.TimestampMillis,
		UserName:  author,
		Content:   content,
		MessageID: in.MessageID,
		ChatTitle: title,
	})
	if err != nil {
		return fmt.Errorf("ingest message %d/%d: %w", in.ChatID, in.MessageID, err)
	}
	metrics.MessagesIngested.Inc()
	return nil
}

func (s *Service) rewrite(ctx context.Context, in Incoming) string {
	content := in.Text

	if in.IsForwarded {
		from := strings.TrimSpace(in.ForwardedFrom)
		if from == "" {
			from = "未知"
		}
		content = "转发自 " + from + ": " + content
	}
	if in.ReplyToMessageID != 0 {
		content = "回复 " + store.MessageLink(in.ChatID, in.ReplyToMessageID) + ": " + content
	}

	// a bare URL by itself becomes its link preview; anything else,
	// including failures, stays as typed
	if s.previews != nil && strings.HasPrefix(content, "http") && !strings.Contains(content, " ") {
		preview, err := s.previews.Extract(ctx, content)
		if err != nil {
			s.logger.Debug("link_preview_failed", "url", content, "error", err.Error())
			return content
		}
		return preview
	}
	return content
}
