package markdown

import (
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	orderedItemRe = regexp.MustCompile(`^(\d+)\.\s+(.*)$`)
	linkAtStartRe = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]*)\)`)
)

// Telegramify converts the model's loosely-formatted markdown into strict
// MarkdownV2. Reserved characters outside code spans get escaped, while
// markdown constructs (emphasis, code, links) are converted in place. Link
// URLs are deliberately kept raw apart from the mandatory ')' and '\'
// escapes, because the link canonicalization and repair stages match on
// them afterwards.
func Telegramify(text string) string {
	var out strings.Builder
	out.Grow(len(text) + len(text)/4)
	rest := text
	for {
		idx := strings.Index(rest, "```")
		if idx < 0 {
			out.WriteString(telegramifyBlock(rest))
			break
		}
		out.WriteString(telegramifyBlock(rest[:idx]))
		body := rest[idx+3:]
		end := strings.Index(body, "```")
		if end < 0 {
			// unterminated fence: treat the remainder as code
			out.WriteString("```")
			out.WriteString(escapeCode(body))
			out.WriteString("```")
			break
		}
		out.WriteString("```")
		out.WriteString(escapeCode(body[:end]))
		out.WriteString("```")
		rest = body[end+3:]
	}
	return out.String()
}

func telegramifyBlock(text string) string {
	if text == "" {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = telegramifyLine(line)
	}
	return strings.Join(lines, "\n")
}

func telegramifyLine(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	indent := line[:len(line)-len(trimmed)]

	if m := headingRe.FindStringSubmatch(trimmed); m != nil {
		return indent + "*" + telegramifyInline(m[2]) + "*"
	}
	if len(trimmed) >= 2 && (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '+') && trimmed[1] == ' ' {
		return indent + "• " + telegramifyInline(trimmed[2:])
	}
	if m := orderedItemRe.FindStringSubmatch(trimmed); m != nil {
		return indent + m[1] + "\\. " + telegramifyInline(m[2])
	}
	if strings.HasPrefix(trimmed, "> ") {
		return indent + ">" + telegramifyInline(trimmed[2:])
	}
	return indent + telegramifyInline(trimmed)
}

func telegramifyInline(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '`':
			if end := strings.IndexByte(s[i+1:], '`'); end >= 0 {
				b.WriteByte('`')
				b.WriteString(escapeCode(s[i+1 : i+1+end]))
				b.WriteByte('`')
				i += end + 2
				continue
			}
			b.WriteString("\\`")
			i++
		case s[i] == '[':
			if m := linkAtStartRe.FindStringSubmatch(s[i:]); m != nil {
				b.WriteByte('[')
				b.WriteString(telegramifyInline(m[1]))
				b.WriteString("](")
				b.WriteString(escapeLinkURL(m[2]))
				b.WriteByte(')')
				i += len(m[0])
				continue
			}
			b.WriteString("\\[")
			i++
		case strings.HasPrefix(s[i:], "**"):
			if end := strings.Index(s[i+2:], "**"); end > 0 {
				b.WriteByte('*')
				b.WriteString(telegramifyInline(s[i+2 : i+2+end]))
				b.WriteByte('*')
				i += end + 4
				continue
			}
			b.WriteString("\\*\\*")
			i += 2
		case strings.HasPrefix(s[i:], "__"):
			if end := strings.Index(s[i+2:], "__"); end > 0 {
				b.WriteByte('*')
				b.WriteString(telegramifyInline(s[i+2 : i+2+end]))
				b.WriteByte('*')
				i += end + 4
				continue
			}
			b.WriteString("\\_\\_")
			i += 2
		case strings.HasPrefix(s[i:], "~~"):
			if end := strings.Index(s[i+2:], "~~"); end > 0 {
				b.WriteByte('~')
				b.WriteString(telegramifyInline(s[i+2 : i+2+end]))
				b.WriteByte('~')
				i += end + 4
				continue
			}
			b.WriteString("\\~\\~")
			i += 2
		case s[i] == '*':
			if end := strings.IndexByte(s[i+1:], '*'); end > 0 {
				b.WriteByte('_')
				b.WriteString(telegramifyInline(s[i+1 : i+1+end]))
				b.WriteByte('_')
				i += end + 2
				continue
			}
			b.WriteString("\\*")
			i++
		case s[i] == '_':
			if end := strings.IndexByte(s[i+1:], '_'); end > 0 {
				b.WriteByte('_')
				b.WriteString(telegramifyInline(s[i+1 : i+1+end]))
				b.WriteByte('_')
				i += end + 2
				continue
			}
			b.WriteString("\\_")
			i++
		default:
			if markdownV2Escapes[s[i]] {
				b.WriteByte('\\')
			}
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}
