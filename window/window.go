// Package window builds bounded context windows over a chat's message log
// and packages them into the structured parts handed to the generation
// service.
package window

import (
	"context"
	"fmt"
	"sort"

	"github.com/Extas/telegram-summary-bot/llm"
	"github.com/Extas/telegram-summary-bot/store"
)

// HardCap bounds a latest-N window no matter what the user asked for.
const HardCap = 4000

const fallbackAuthor = "anonymous"

// Querier is the read-only slice of the message store the builder needs.
type Querier interface {
	QuerySince(ctx context.Context, chatID, sinceMillis int64) ([]store.Message, error)
	QueryLatestN(ctx context.Context, chatID int64, n int) ([]store.Message, error)
}

// Pack is the ordered, structured representation of a message window.
// Parts come in groups of three per message: speaker label, content,
// deep link, ascending by timestamp.
type Pack struct {
	Parts    []llm.Part
	Messages int
}

func (p Pack) Empty() bool {
	return p.Messages == 0
}

type Builder struct {
	querier Querier
	nowFn   func() int64
}

func NewBuilder(q Querier, nowMillis func() int64) *Builder {
	return &Builder{querier: q, nowFn: nowMillis}
}

// Build selects the window described by sel and packages it. A window with
// zero matching messages yields an empty pack, not an error; callers decide
// what an empty pack means.
func (b *Builder) Build(ctx context.Context, chatID int64, sel Selector) (Pack, error) {
	var (
		msgs []store.Message
		err  error
	)
	switch sel.Kind {
	case SelectorHours:
		if sel.Hours <= 0 {
			return Pack{}, fmt.Errorf("%w: hours must be positive", ErrInvalidSelector)
		}
		cutoff := b.nowFn() - int64(sel.Hours)*3600*1000
		msgs, err = b.querier.QuerySince(ctx, chatID, cutoff)
	case SelectorCount:
		if sel.Count <= 0 {
			return Pack{}, fmt.Errorf("%w: count must be positive", ErrInvalidSelector)
		}
		n := sel.Count
		if n > HardCap {
			n = HardCap
		}
		msgs, err = b.querier.QueryLatestN(ctx, chatID, n)
		if err == nil {
			// latest-N retrieval is reverse-chronological; the pack
			// contract is ascending.
			sort.SliceStable(msgs, func(i, j int) bool {
				return msgs[i].Timestamp < msgs[j].Timestamp
			})
		}
	default:
		return Pack{}, fmt.Errorf("%w: unknown selector kind", ErrInvalidSelector)
	}
	if err != nil {
		return Pack{}, fmt.Errorf("build context window: %w", err)
	}

	return packMessages(msgs), nil
}

func packMessages(msgs []store.Message) Pack {
	parts := make([]llm.Part, 0, len(msgs)*3)
	for _, m := range msgs {
		author := m.UserName
		if author == "" {
			author = fallbackAuthor
		}
		parts = append(parts,
			llm.TextPart(author+":"),
			llm.NewPart(m.Content),
			llm.TextPart(store.MessageLink(m.ChatID, m.MessageID)),
		)
	}
	return Pack{Parts: parts, Messages: len(msgs)}
}
