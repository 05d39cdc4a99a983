package markdown

import (
	"strings"
	"testing"
)

func TestTelegramifyEscapesReservedText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain_sentence",
			in:   "It works. Really!",
			want: "It works\\. Really\\!",
		},
		{
			name: "bold_to_v2",
			in:   "**important** point",
			want: "*important* point",
		},
		{
			name: "italic_star",
			in:   "an *aside* here",
			want: "an _aside_ here",
		},
		{
			name: "strikethrough",
			in:   "~~wrong~~ right",
			want: "~wrong~ right",
		},
		{
			name: "heading_becomes_bold",
			in:   "## Topics today",
			want: "*Topics today*",
		},
		{
			name: "bullet_list",
			in:   "- first\n- second",
			want: "• first\n• second",
		},
		{
			name: "ordered_list",
			in:   "1. first",
			want: "1\\. first",
		},
		{
			name: "dangling_bold_marker",
			in:   "just ** alone",
			want: "just \\*\\* alone",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Telegramify(tt.in); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTelegramifyCodeSpansStayRaw(t *testing.T) {
	t.Parallel()

	got := Telegramify("run `a.b[0]` now")
	if got != "run `a.b[0]` now" {
		t.Fatalf("inline code changed: %q", got)
	}

	got = Telegramify("```go\nx := a.b\n```")
	if got != "```go\nx := a.b\n```" {
		t.Fatalf("fenced code changed: %q", got)
	}
}

func TestTelegramifyKeepsLinkURLRaw(t *testing.T) {
	t.Parallel()

	got := Telegramify("see [docs v1.2](https://t.me/c/123/4)")
	if !strings.Contains(got, "(https://t.me/c/123/4)") {
		t.Fatalf("link URL was escaped: %q", got)
	}
	if !strings.Contains(got, "[docs v1\\.2]") {
		t.Fatalf("link text not escaped: %q", got)
	}
}

func TestEscapeRoundTripCharacters(t *testing.T) {
	t.Parallel()

	in := "_*[]()~`>#+-=|{}.!\\"
	want := "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!\\\\"
	if got := Escape(in); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
