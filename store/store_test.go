package store

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewWithDB(gdb)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func seedMessage(t *testing.T, s *Store, chatID, messageID, ts int64, content string) {
	t.Helper()
	err := s.Upsert(context.Background(), Message{
		ChatID:    chatID,
		Timestamp: ts,
		UserName:  "alice",
		Content:   content,
		MessageID: messageID,
		ChatTitle: "test group",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestUpsertIsIdempotentByChatAndMessageID(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedMessage(t, s, -1001234, 42, 1000, "first version")
	seedMessage(t, s, -1001234, 42, 2000, "edited version")

	rows, err := s.QuerySince(ctx, -1001234, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(rows))
	}
	if rows[0].Content != "edited version" {
		t.Errorf("last write should win, got %q", rows[0].Content)
	}
	if rows[0].ID != MessageKey(-1001234, 42) {
		t.Errorf("id not derived from identity: %q", rows[0].ID)
	}
}

func TestQuerySinceAscendingAndCutoff(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		seedMessage(t, s, -1001234, i, i*100, fmt.Sprintf("msg %d", i))
	}

	rows, err := s.QuerySince(ctx, -1001234, 300)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, r := range rows {
		if r.Timestamp < 300 {
			t.Errorf("row %d below cutoff: %d", i, r.Timestamp)
		}
		if i > 0 && rows[i-1].Timestamp > r.Timestamp {
			t.Errorf("rows not ascending at %d", i)
		}
	}
}

func TestQueryLatestNDescending(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		seedMessage(t, s, -1001234, i, i*100, fmt.Sprintf("msg %d", i))
	}

	rows, err := s.QueryLatestN(ctx, -1001234, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Timestamp != 500 || rows[2].Timestamp != 300 {
		t.Errorf("expected newest first, got %d..%d", rows[0].Timestamp, rows[2].Timestamp)
	}
}

func TestQueryGlob(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedMessage(t, s, -1001234, 1, 100, "we talked about golang today")
	seedMessage(t, s, -1001234, 2, 200, "gopher conference")
	seedMessage(t, s, -1001234, 3, 300, "100% unrelated")

	rows, err := s.QueryGlob(ctx, -1001234, "*golang*", 50)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].MessageID != 1 {
		t.Fatalf("glob match wrong: %+v", rows)
	}

	// literal % in the pattern must not act as a wildcard
	rows, err = s.QueryGlob(ctx, -1001234, "*100%*", 50)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].MessageID != 3 {
		t.Fatalf("escaped %% match wrong: %+v", rows)
	}
}

func TestDeleteExceptLatestNPerChat(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 10; i++ {
		seedMessage(t, s, -1001111, i, i*10, "a")
	}
	for i := int64(1); i <= 4; i++ {
		seedMessage(t, s, -1002222, i, i*10, "b")
	}

	if err := s.DeleteExceptLatestN(ctx, 5); err != nil {
		t.Fatalf("prune: %v", err)
	}

	a, err := s.QuerySince(ctx, -1001111, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(a) != 5 {
		t.Fatalf("expected 5 retained, got %d", len(a))
	}
	// retained set is exactly the most recent by timestamp
	for _, r := range a {
		if r.Timestamp < 60 {
			t.Errorf("old message survived prune: ts=%d", r.Timestamp)
		}
	}

	b, err := s.QuerySince(ctx, -1002222, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(b) != 4 {
		t.Fatalf("chat below the cap must be untouched, got %d", len(b))
	}
}

func TestListActiveChatsThresholdAndOrder(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 15; i++ {
		seedMessage(t, s, -1001111, i, 1000+i, "a")
	}
	for i := int64(1); i <= 20; i++ {
		seedMessage(t, s, -1002222, i, 1000+i, "b")
	}
	for i := int64(1); i <= 5; i++ {
		seedMessage(t, s, -1003333, i, 1000+i, "c")
	}
	// stale chat: active long ago only
	for i := int64(1); i <= 30; i++ {
		seedMessage(t, s, -1004444, i, i, "d")
	}

	active, err := s.ListActiveChats(ctx, 1000, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active chats, got %+v", active)
	}
	if active[0].ChatID != -1002222 || active[1].ChatID != -1001111 {
		t.Errorf("expected count-descending order, got %+v", active)
	}
}

func TestMessageLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		chatID    int64
		messageID int64
		want      string
	}{
		{
			name:      "supergroup_prefix_stripped",
			chatID:    -1001234567,
			messageID: 99,
			want:      "https://t.me/c/1234567/99",
		},
		{
			name:      "plain_negative_group",
			chatID:    -4567,
			messageID: 7,
			want:      "https://t.me/c/4567/7",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MessageLink(tt.chatID, tt.messageID); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
