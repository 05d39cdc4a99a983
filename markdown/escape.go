package markdown

import "strings"

var markdownV2Escapes = map[byte]bool{
	'\\': true,
	'_':  true,
	'*':  true,
	'[':  true,
	']':  true,
	'(':  true,
	')':  true,
	'~':  true,
	'`':  true,
	'>':  true,
	'#':  true,
	'+':  true,
	'-':  true,
	'=':  true,
	'|':  true,
	'{':  true,
	'}':  true,
	'.':  true,
	'!':  true,
}

// Escape backslash-escapes every MarkdownV2 reserved character in text.
// It is the blunt instrument for content that must render literally; the
// telegramify stage does construct-aware escaping instead.
func Escape(text string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if markdownV2Escapes[ch] {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// escapeCode escapes the characters reserved inside code and pre entities.
func escapeCode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch == '`' || ch == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// escapeLinkURL escapes the characters reserved inside the (...) part of
// an inline link. Everything else stays raw so later stages can match the
// URL byte for byte.
func escapeLinkURL(url string) string {
	var b strings.Builder
	b.Grow(len(url))
	for i := 0; i < len(url); i++ {
		ch := url[i]
		if ch == ')' || ch == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}
