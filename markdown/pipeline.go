// Package markdown turns raw model output into strict Telegram MarkdownV2:
// dialect conversion, self-link canonicalization, domain repair, spoiler
// fold and a model banner, in that fixed order.
package markdown

import "strings"

// Fold wraps text in an expandable block-quote spoiler so long digests do
// not flood the chat view.
func Fold(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = ">" + line
	}
	return "**>" + strings.Join(lines, "\n") + "||"
}

// Banner prepends the fixed line identifying the generating model. The
// model name is escaped because it contains reserved characters
// ("gemini-2.0-flash" carries both '-' and '.').
func Banner(model, body string) string {
	return "下面由免费 " + Escape(model) + " 概括群聊信息\n" + body
}

type Options struct {
	// Model appears in the banner line.
	Model string
	// LinkPrefix labels canonicalized links; defaults to DefaultLinkPrefix.
	LinkPrefix string
}

// Stage is one named transform of the chain. Stages that do not use the
// link registry ignore it.
type Stage struct {
	Name  string
	Apply func(text string, reg *Registry) string
}

// Pipeline is the fixed-order postprocessing chain. The chain is not
// idempotent: running it twice re-escapes and re-folds, so callers must
// process each model response exactly once.
type Pipeline struct {
	stages []Stage
}

func NewPipeline(opts Options) *Pipeline {
	prefix := opts.LinkPrefix
	if prefix == "" {
		prefix = DefaultLinkPrefix
	}
	return &Pipeline{
		stages: []Stage{
			{Name: "telegramify", Apply: func(s string, _ *Registry) string {
				return Telegramify(s)
			}},
			{Name: "canonicalize_links", Apply: func(s string, reg *Registry) string {
				return CanonicalizeLinks(s, prefix, reg)
			}},
			{Name: "repair_links", Apply: func(s string, _ *Registry) string {
				return RepairLinks(s)
			}},
			{Name: "fold", Apply: func(s string, _ *Registry) string {
				return Fold(s)
			}},
			{Name: "banner", Apply: func(s string, _ *Registry) string {
				return Banner(opts.Model, s)
			}},
		},
	}
}

// Stages exposes the ordered stage names, mostly for logging.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name
	}
	return names
}

// Process runs the whole chain over one raw model response. The link
// registry is created fresh per call and discarded afterwards.
func (p *Pipeline) Process(raw string) string {
	reg := NewRegistry()
	for _, st := range p.stages {
		raw = st.Apply(raw, reg)
	}
	return raw
}
