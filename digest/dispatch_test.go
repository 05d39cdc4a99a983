package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Extas/telegram-summary-bot/llm"
	"github.com/Extas/telegram-summary-bot/store"
)

func seedActiveChats(st *fakeStore, chatIDs ...int64) {
	for _, chatID := range chatIDs {
		for i := int64(1); i <= 12; i++ {
			st.add(chatID, i, i*60*1000, "alice", "chatter")
		}
		st.active = append(st.active, store.ChatActivity{ChatID: chatID, Count: 12})
	}
}

func TestRunCycleBatchesWithBarrierAndIsolation(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	seedActiveChats(st, -1, -2, -3, -4, -5)

	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	client := &fakeLLM{fn: func(req llm.Request) (llm.Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return llm.Result{Text: "digest"}, nil
	}}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxSeen > 2 {
		t.Errorf("batch barrier violated: %d jobs in flight", maxSeen)
	}

	var digests int
	for _, m := range tr.sent {
		if m.ParseMode == ParseModeMarkdownV2 {
			digests++
		}
	}
	if digests != 5 {
		t.Errorf("expected 5 digests delivered, got %d", digests)
	}
}

func TestRunCycleFailureDoesNotAffectSiblings(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	seedActiveChats(st, -1, -2, -3, -4, -5)

	client := &fakeLLM{fn: func(req llm.Request) (llm.Result, error) {
		// the deep link part carries the chat id; use it to fail chat -2
		for _, p := range req.Parts {
			if strings.Contains(p.Text, "t.me/c/2/") {
				return llm.Result{}, errors.New("gemini http 500: boom")
			}
		}
		return llm.Result{Text: "digest"}, nil
	}}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("a failing job must not fail the cycle: %v", err)
	}

	delivered := map[int64]bool{}
	for _, m := range tr.sent {
		if m.ParseMode == ParseModeMarkdownV2 {
			delivered[m.ChatID] = true
		}
	}
	for _, chatID := range []int64{-1, -3, -4, -5} {
		if !delivered[chatID] {
			t.Errorf("chat %d digest missing", chatID)
		}
	}
	if delivered[-2] {
		t.Error("failed chat should not receive a digest")
	}
}

func TestRunCycleSkipsQuietChatsSilently(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	// active by count threshold at discovery time, but below the per-job
	// minimum once the window is built
	for i := int64(1); i <= 5; i++ {
		st.add(-9, i, i*1000, "alice", "sparse")
	}
	st.active = []store.ChatActivity{{ChatID: -9, Count: 11}}

	client := &fakeLLM{}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("quiet chat must be skipped without a message, sent %+v", tr.sent)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.calls) != 0 {
		t.Errorf("no generation expected for a quiet chat, got %d calls", len(client.calls))
	}
}

func TestRunCycleEmptyResultAbortsChatSilently(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	seedActiveChats(st, -1)

	client := &fakeLLM{fn: func(llm.Request) (llm.Result, error) {
		return llm.Result{Text: ""}, nil
	}}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("empty result must not produce a user-visible message: %+v", tr.sent)
	}
}

func TestRunCycleNoActiveChatsTerminates(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	client := &fakeLLM{}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Errorf("nothing should be sent, got %+v", tr.sent)
	}
}

func TestRunCycleFiresCleanup(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	client := &fakeLLM{}
	tr := &fakeTransport{}
	s := newTestService(st, client, tr)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// cleanup is fire-and-forget; give it a moment
	deadline := time.Now().Add(2 * time.Second)
	for {
		st.mu.Lock()
		n := st.pruneN
		st.mu.Unlock()
		if n == 3000 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("cleanup never ran, pruneN=%d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
