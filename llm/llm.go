package llm

import (
	"context"
	"strings"
	"time"
)

// inlineImagePrefix marks a stored message whose content is an inline
// JPEG rather than text. The store keeps both in the same column, so
// classification happens here, at the request boundary.
const inlineImagePrefix = "data:image/jpeg;base64,"

type Part struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// NewPart classifies raw message content into a text or inline-image part.
func NewPart(content string) Part {
	if strings.HasPrefix(content, inlineImagePrefix) {
		return Part{ImageURL: content}
	}
	return Part{Text: content}
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func (p Part) IsImage() bool {
	return p.ImageURL != ""
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model string
	// System is the optional instruction message. Empty means the
	// request carries a single user turn only.
	System          string
	Parts           []Part
	Temperature     float64
	MaxOutputTokens int
}

type Client interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
