package window

import (
	"context"
	"errors"
	"testing"

	"github.com/Extas/telegram-summary-bot/store"
)

type fakeQuerier struct {
	since    []store.Message
	latest   []store.Message
	gotSince int64
	gotN     int
}

func (f *fakeQuerier) QuerySince(_ context.Context, _ int64, sinceMillis int64) ([]store.Message, error) {
	f.gotSince = sinceMillis
	return f.since, nil
}

func (f *fakeQuerier) QueryLatestN(_ context.Context, _ int64, n int) ([]store.Message, error) {
	f.gotN = n
	return f.latest, nil
}

func msg(id int64, ts int64, author, content string) store.Message {
	return store.Message{
		ID:        store.MessageKey(-1001234, id),
		ChatID:    -1001234,
		Timestamp: ts,
		UserName:  author,
		Content:   content,
		MessageID: id,
	}
}

func TestParseSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Selector
		wantErr bool
	}{
		{name: "hours", in: "24h", want: HoursSelector(24)},
		{name: "count", in: "500", want: CountSelector(500)},
		{name: "spaces", in: " 2h ", want: HoursSelector(2)},
		{name: "zero_hours", in: "0h", wantErr: true},
		{name: "negative_count", in: "-5", wantErr: true},
		{name: "not_a_number", in: "yesterday", wantErr: true},
		{name: "float_count", in: "3.5", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSelector(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSelector) {
					t.Fatalf("want ErrInvalidSelector, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildHoursWindowUsesCutoff(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{since: []store.Message{
		msg(1, 100, "alice", "hi"),
		msg(2, 200, "bob", "hello"),
	}}
	b := NewBuilder(q, func() int64 { return 24*3600*1000 + 500 })

	pack, err := b.Build(context.Background(), -1001234, HoursSelector(24))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if q.gotSince != 500 {
		t.Errorf("cutoff = %d, want 500", q.gotSince)
	}
	if pack.Messages != 2 || len(pack.Parts) != 6 {
		t.Fatalf("pack = %d messages / %d parts", pack.Messages, len(pack.Parts))
	}
	if pack.Parts[0].Text != "alice:" {
		t.Errorf("part 0 = %q", pack.Parts[0].Text)
	}
	if pack.Parts[2].Text != "https://t.me/c/1234/1" {
		t.Errorf("deep link = %q", pack.Parts[2].Text)
	}
}

func TestBuildCountWindowResortsAscendingAndCaps(t *testing.T) {
	t.Parallel()

	// storage returns reverse-chronological
	q := &fakeQuerier{latest: []store.Message{
		msg(3, 300, "carol", "newest"),
		msg(2, 200, "bob", "middle"),
		msg(1, 100, "alice", "oldest"),
	}}
	b := NewBuilder(q, func() int64 { return 0 })

	pack, err := b.Build(context.Background(), -1001234, CountSelector(9000))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if q.gotN != HardCap {
		t.Errorf("requested %d rows, want the hard cap %d", q.gotN, HardCap)
	}
	if pack.Parts[1].Text != "oldest" || pack.Parts[7].Text != "newest" {
		t.Errorf("pack not ascending: %q ... %q", pack.Parts[1].Text, pack.Parts[7].Text)
	}
}

func TestBuildEmptyWindowIsNotAnError(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&fakeQuerier{}, func() int64 { return 1000 })
	pack, err := b.Build(context.Background(), -1001234, HoursSelector(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !pack.Empty() {
		t.Fatalf("expected empty pack, got %+v", pack)
	}
}

func TestBuildAnonymousAuthorFallback(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{since: []store.Message{msg(1, 100, "", "hi")}}
	b := NewBuilder(q, func() int64 { return 3600 * 1000 })

	pack, err := b.Build(context.Background(), -1001234, HoursSelector(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pack.Parts[0].Text != "anonymous:" {
		t.Errorf("author fallback = %q", pack.Parts[0].Text)
	}
}

func TestBuildImageContentBecomesImagePart(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{since: []store.Message{msg(1, 100, "alice", "data:image/jpeg;base64,AAAA")}}
	b := NewBuilder(q, func() int64 { return 3600 * 1000 })

	pack, err := b.Build(context.Background(), -1001234, HoursSelector(1))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !pack.Parts[1].IsImage() {
		t.Errorf("content part should be an image, got %+v", pack.Parts[1])
	}
}
