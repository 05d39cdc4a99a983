package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultLinkPrefix labels canonicalized self-referential links.
const DefaultLinkPrefix = "引用"

var markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// Registry assigns ordinals to URLs in first-seen order, starting at 1.
// One registry lives for exactly one postprocessing run; it is never
// shared or persisted.
type Registry struct {
	ordinals map[string]int
	next     int
}

func NewRegistry() *Registry {
	return &Registry{ordinals: map[string]int{}, next: 1}
}

func (r *Registry) Ordinal(url string) int {
	if n, ok := r.ordinals[url]; ok {
		return n
	}
	n := r.next
	r.ordinals[url] = n
	r.next++
	return n
}

var superscriptDigits = map[rune]rune{
	'0': '⁰', '1': '¹', '2': '²', '3': '³', '4': '⁴',
	'5': '⁵', '6': '⁶', '7': '⁷', '8': '⁸', '9': '⁹',
}

// Superscript renders an ordinal with superscript digits.
func Superscript(n int) string {
	s := []rune(strconv.Itoa(n))
	for i, r := range s {
		if sup, ok := superscriptDigits[r]; ok {
			s[i] = sup
		}
	}
	return string(s)
}

// CanonicalizeLinks rewrites every self-referential markdown link (display
// text equal to its URL) into "[{prefix}{superscript ordinal}](url)",
// reusing the ordinal for repeated URLs. Links whose display text differs
// from their URL stay untouched. Comparison and registry keys ignore
// escaping backslashes so links survive the telegramify stage intact.
func CanonicalizeLinks(text, prefix string, reg *Registry) string {
	if prefix == "" {
		prefix = DefaultLinkPrefix
	}
	return markdownLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := markdownLinkRe.FindStringSubmatch(m)
		display, url := sub[1], sub[2]
		if stripEscapes(display) != stripEscapes(url) {
			return m
		}
		n := reg.Ordinal(stripEscapes(url))
		return "[" + prefix + Superscript(n) + "](" + url + ")"
	})
}

func stripEscapes(s string) string {
	return strings.ReplaceAll(s, "\\", "")
}

// RepairLinks fixes a recurring model quirk: the chat-platform domain
// comes out as "tme.cat" instead of "t.me/c". The substitution can
// double a path segment, which collapses afterwards. Both the raw and
// the escaped spelling occur depending on where in the text the domain
// sits, so both are repaired.
func RepairLinks(text string) string {
	text = strings.ReplaceAll(text, `tme\.cat`, `t\.me/c`)
	text = strings.ReplaceAll(text, "tme.cat", "t.me/c")
	text = strings.ReplaceAll(text, "/c/c", "/c")
	return text
}
