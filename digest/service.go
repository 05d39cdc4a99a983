// Package digest runs the summarization pipeline: context window
// construction, generation, markdown postprocessing and delivery, both
// for interactive commands and for the scheduled per-chat digest cycle.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Extas/telegram-summary-bot/internal/metrics"
	"github.com/Extas/telegram-summary-bot/llm"
	"github.com/Extas/telegram-summary-bot/markdown"
	"github.com/Extas/telegram-summary-bot/store"
	"github.com/Extas/telegram-summary-bot/window"
)

// ParseModeMarkdownV2 is the only parse mode the pipeline emits.
const ParseModeMarkdownV2 = "MarkdownV2"

// Store is the slice of the message store the pipeline consumes.
type Store interface {
	window.Querier
	QueryGlob(ctx context.Context, chatID int64, pattern string, limit int) ([]store.Message, error)
	DeleteExceptLatestN(ctx context.Context, n int) error
	ListActiveChats(ctx context.Context, sinceMillis int64, minCount int) ([]store.ChatActivity, error)
}

// Transport delivers messages to the chat platform. SendMessage returns
// the platform-assigned id of the sent message so callers can edit it
// later. No retries happen at this layer.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string) error
}

type Config struct {
	Model             string
	LinkPrefix        string
	MaxOutputTokens   int
	InteractiveTemp   float64
	ScheduledTemp     float64
	AskContextSize    int
	QueryLimit        int
	RetainPerChat     int
	ActivityWindow    time.Duration
	MinActiveMessages int
	MinDigestMessages int
	Concurrency       int
}

func DefaultConfig() Config {
	return Config{
		Model:             "gemini-2.0-flash",
		LinkPrefix:        markdown.DefaultLinkPrefix,
		MaxOutputTokens:   4096,
		InteractiveTemp:   0.4,
		ScheduledTemp:     0.5,
		AskContextSize:    1000,
		QueryLimit:        50,
		RetainPerChat:     3000,
		ActivityWindow:    24 * time.Hour,
		MinActiveMessages: 10,
		MinDigestMessages: 10,
		Concurrency:       2,
	}
}

type Service struct {
	cfg       Config
	store     Store
	client    llm.Client
	transport Transport
	builder   *window.Builder
	pipeline  *markdown.Pipeline
	logger    *slog.Logger
	nowFn     func() time.Time
}

func NewService(cfg Config, st Store, client llm.Client, transport Transport, logger *slog.Logger) *Service {
	if cfg.Model == "" {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := time.Now
	return &Service{
		cfg:       cfg,
		store:     st,
		client:    client,
		transport: transport,
		builder:   window.NewBuilder(st, func() int64 { return nowFn().UnixMilli() }),
		pipeline:  markdown.NewPipeline(markdown.Options{Model: cfg.Model, LinkPrefix: cfg.LinkPrefix}),
		logger:    logger,
		nowFn:     nowFn,
	}
}

// setNow swaps the clock. Tests only.
func (s *Service) setNow(nowFn func() time.Time) {
	s.nowFn = nowFn
	s.builder = window.NewBuilder(s.store, func() int64 { return nowFn().UnixMilli() })
}

// Summarize handles the interactive summary command: parse the selector,
// build the window, generate and deliver. All failures are resolved into
// a user-visible reply; the returned error covers delivery of that reply
// only.
func (s *Service) Summarize(ctx context.Context, chatID int64, selectorArg string) error {
	if strings.TrimSpace(selectorArg) == "" {
		_, err := s.transport.SendMessage(ctx, chatID, replySelectorUsage, "")
		return err
	}

	sel, err := window.ParseSelector(selectorArg)
	if err != nil {
		_, sendErr := s.transport.SendMessage(ctx, chatID, "参数错误: "+err.Error(), "")
		return sendErr
	}

	pack, err := s.builder.Build(ctx, chatID, sel)
	if err != nil {
		return fmt.Errorf("summarize chat %d: %w", chatID, err)
	}
	if pack.Empty() {
		_, err := s.transport.SendMessage(ctx, chatID, replyNoMessages, "")
		return err
	}

	_, _ = s.transport.SendMessage(ctx, chatID, replySummaryWorking, "")
	s.logger.Info("summary_requested", "chat_id", chatID, "messages", pack.Messages)

	text, err := s.generate(ctx, summarizeChatPrompt, pack.Parts, s.cfg.InteractiveTemp)
	if err != nil {
		s.logGenerationFailure("summary", chatID, err)
		_, sendErr := s.transport.SendMessage(ctx, chatID, replySummaryFailed, "")
		return sendErr
	}
	if text == "" {
		text = fallbackSummaryEmpty
	}

	formatted := s.pipeline.Process(text)
	if _, err := s.transport.SendMessage(ctx, chatID, formatted, ParseModeMarkdownV2); err != nil {
		metrics.TransportFailures.Inc()
		return transportError("summary", err)
	}
	return nil
}

// Ask answers a question over the chat's recent history. A placeholder
// message goes out first and is edited with the final answer, so the user
// sees progress instead of silence.
func (s *Service) Ask(ctx context.Context, chatID int64, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		_, err := s.transport.SendMessage(ctx, chatID, replyAskUsage, "")
		return err
	}

	placeholderID, err := s.transport.SendMessage(ctx, chatID, replyAskThinking, "")
	if err != nil {
		metrics.TransportFailures.Inc()
		return transportError("ask placeholder", err)
	}

	pack, err := s.builder.Build(ctx, chatID, window.CountSelector(s.cfg.AskContextSize))
	if err != nil {
		return fmt.Errorf("ask chat %d: %w", chatID, err)
	}
	if pack.Empty() {
		return s.transport.EditMessageText(ctx, chatID, placeholderID, replyAskNoContext, "")
	}
	s.logger.Info("ask_requested", "chat_id", chatID, "messages", pack.Messages)

	parts := append(pack.Parts,
		llm.TextPart(askPartsSeparator),
		llm.TextPart(askQuestionInstruction),
		llm.TextPart(question),
	)

	text, err := s.generate(ctx, answerQuestionPrompt, parts, s.cfg.InteractiveTemp)
	if err != nil {
		s.logGenerationFailure("ask", chatID, err)
		if editErr := s.transport.EditMessageText(ctx, chatID, placeholderID, replyAskFailed, ""); editErr != nil {
			s.logger.Error("ask_failure_reply_failed", "chat_id", chatID, "error", editErr.Error())
		}
		return nil
	}
	if text == "" {
		text = fallbackAnswerEmpty
	}

	formatted := s.pipeline.Process(text)
	if err := s.transport.EditMessageText(ctx, chatID, placeholderID, formatted, ParseModeMarkdownV2); err != nil {
		metrics.TransportFailures.Inc()
		return transportError("ask", err)
	}
	return nil
}

// Query searches the chat log by keyword and renders matches as escaped
// plain lines with a deep link per match. No generation involved.
func (s *Service) Query(ctx context.Context, chatID int64, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		_, err := s.transport.SendMessage(ctx, chatID, replyQueryUsage, "")
		return err
	}

	rows, err := s.store.QueryGlob(ctx, chatID, "*"+keyword+"*", s.cfg.QueryLimit)
	if err != nil {
		return fmt.Errorf("query chat %d: %w", chatID, err)
	}

	var b strings.Builder
	b.WriteString("查询结果:\n")
	for _, r := range rows {
		b.WriteString(r.UserName)
		b.WriteString(": ")
		b.WriteString(r.Content)
		if r.MessageID != 0 {
			b.WriteString(" [link](")
			b.WriteString(store.MessageLink(r.ChatID, r.MessageID))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	if _, err := s.transport.SendMessage(ctx, chatID, markdown.Escape(b.String()), ParseModeMarkdownV2); err != nil {
		metrics.TransportFailures.Inc()
		return transportError("query", err)
	}
	return nil
}

// Status is the fixed liveness reply.
func (s *Service) Status(ctx context.Context, chatID int64) error {
	_, err := s.transport.SendMessage(ctx, chatID, replyStatus, "")
	return err
}

// GroupOnlyHint tells a private chat that the bot works in groups.
func (s *Service) GroupOnlyHint(ctx context.Context, chatID int64) error {
	_, err := s.transport.SendMessage(ctx, chatID, replyGroupOnly, "")
	return err
}

func (s *Service) generate(ctx context.Context, system string, parts []llm.Part, temperature float64) (string, error) {
	start := time.Now()
	res, err := s.client.Generate(ctx, llm.Request{
		Model:           s.cfg.Model,
		System:          system,
		Parts:           parts,
		Temperature:     temperature,
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationFailures.Inc()
		return "", generationError(err)
	}
	return strings.TrimSpace(res.Text), nil
}

func (s *Service) logGenerationFailure(op string, chatID int64, err error) {
	s.logger.Error("generation_failed",
		"op", op,
		"chat_id", chatID,
		"kind", string(Kind(err)),
		"error", err.Error(),
	)
}
