package main

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		wantCmd string
		wantArg string
		wantOK  bool
	}{
		{"plain text", "hello there", "", "", false},
		{"bare command", "/status", "status", "", true},
		{"command with arg", "/summary 24h", "summary", "24h", true},
		{"mentioned us", "/query@digest_bot golang", "query", "golang", true},
		{"mentioned other bot", "/query@other_bot golang", "", "", false},
		{"mention case insensitive", "/ask@Digest_Bot why", "ask", "why", true},
		{"uppercase command", "/SUMMARY 500", "summary", "500", true},
		{"lone slash", "/", "", "", false},
		{"multiword arg", "/ask 昨天大家讨论了什么", "ask", "昨天大家讨论了什么", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, arg, ok := parseCommand(tt.text, "digest_bot")
			if cmd != tt.wantCmd || arg != tt.wantArg || ok != tt.wantOK {
				t.Fatalf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.text, cmd, arg, ok, tt.wantCmd, tt.wantArg, tt.wantOK)
			}
		})
	}
}
