package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Extas/telegram-summary-bot/internal/metrics"
	"github.com/Extas/telegram-summary-bot/window"
	"github.com/google/uuid"
)

// RunCycle executes one scheduled dispatch cycle: prune old rows, discover
// active chats, then run one digest job per chat in consecutive batches of
// cfg.Concurrency. All jobs of a batch settle before the next batch starts,
// and a failing job never affects its siblings.
func (s *Service) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID)
	logger.Info("digest_cycle_started")
	metrics.DigestCycles.Inc()

	// Cleanup runs detached: it must not block or fail the cycle, and it
	// may outlive a cancelled trigger.
	cleanupCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.store.DeleteExceptLatestN(cleanupCtx, s.cfg.RetainPerChat); err != nil {
			logger.Error("cleanup_failed", "error", err.Error())
			return
		}
		logger.Info("cleanup_finished", "retain_per_chat", s.cfg.RetainPerChat)
	}()

	since := s.nowFn().Add(-s.cfg.ActivityWindow).UnixMilli()
	active, err := s.store.ListActiveChats(ctx, since, s.cfg.MinActiveMessages)
	if err != nil {
		return fmt.Errorf("list active chats: %w", err)
	}
	if len(active) == 0 {
		logger.Info("digest_cycle_finished", "reason", "no_active_chats")
		return nil
	}
	logger.Info("active_chats_found", "count", len(active))

	limit := s.cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	batches := (len(active) + limit - 1) / limit
	for i := 0; i < len(active); i += limit {
		batch := active[i:min(i+limit, len(active))]
		logger.Info("batch_started", "batch", i/limit+1, "batches", batches, "size", len(batch))

		var wg sync.WaitGroup
		for _, chat := range batch {
			wg.Add(1)
			go func(chatID int64) {
				defer wg.Done()
				s.runDigestJob(ctx, logger, chatID)
			}(chat.ChatID)
		}
		wg.Wait()
	}

	logger.Info("digest_cycle_finished", "chats", len(active))
	return nil
}

// runDigestJob isolates one chat's digest. Panics and errors are contained
// here so sibling jobs and the batch barrier stay unaffected.
func (s *Service) runDigestJob(ctx context.Context, logger *slog.Logger, chatID int64) {
	defer func() {
		if r := recover(); r != nil {
			metrics.DigestJobs.WithLabelValues("failed").Inc()
			logger.Error("digest_job_panicked", "chat_id", chatID, "panic", fmt.Sprint(r))
		}
	}()

	if err := s.digestChat(ctx, chatID); err != nil {
		metrics.DigestJobs.WithLabelValues("failed").Inc()
		logger.Error("digest_job_failed",
			"chat_id", chatID,
			"kind", string(Kind(err)),
			"error", err.Error(),
		)
		return
	}
}

// digestChat runs the scheduled pipeline for one chat: 24h window, minimum
// activity check, generation at the scheduled temperature, postprocessing,
// push. Skips are silent; only real failures return an error.
func (s *Service) digestChat(ctx context.Context, chatID int64) error {
	hours := int(s.cfg.ActivityWindow.Hours())
	pack, err := s.builder.Build(ctx, chatID, window.HoursSelector(hours))
	if err != nil {
		return err
	}
	if pack.Messages < s.cfg.MinDigestMessages {
		metrics.DigestJobs.WithLabelValues("skipped").Inc()
		s.logger.Info("digest_skipped", "chat_id", chatID, "reason", "insufficient_messages", "messages", pack.Messages)
		return nil
	}

	text, err := s.generate(ctx, summarizeChatPrompt, pack.Parts, s.cfg.ScheduledTemp)
	if err != nil {
		return err
	}
	if text == "" {
		// soft failure: no user-visible message for this chat this cycle
		metrics.DigestJobs.WithLabelValues("skipped").Inc()
		s.logger.Error("digest_empty_result", "chat_id", chatID)
		return nil
	}

	formatted := s.pipeline.Process(text)
	if _, err := s.transport.SendMessage(ctx, chatID, formatted, ParseModeMarkdownV2); err != nil {
		metrics.TransportFailures.Inc()
		return transportError("digest", err)
	}
	metrics.DigestJobs.WithLabelValues("sent").Inc()
	s.logger.Info("digest_sent", "chat_id", chatID, "messages", pack.Messages)
	return nil
}
