// Package linkpreview fetches a page and extracts its Open Graph
// metadata, so a bare URL dropped into a chat can be stored as something
// a summarizer can work with.
package linkpreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 512 * 1024

var ErrNoPreview = errors.New("no open graph metadata found")

type Preview struct {
	Title       string
	Description string
	SiteName    string
}

type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func New() *Client {
	return &Client{
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

// Extract fetches rawURL and returns its preview text: the URL itself
// followed by whatever metadata the page exposes. The URL stays first so
// deep-link handling downstream keeps working on the stored content.
func (c *Client) Extract(ctx context.Context, rawURL string) (string, error) {
	p, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return p.Render(rawURL), nil
}

func (c *Client) Fetch(ctx context.Context, rawURL string) (Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Preview{}, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Preview{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Preview{}, fmt.Errorf("linkpreview http %d", resp.StatusCode)
	}

	p := parse(io.LimitReader(resp.Body, maxBodyBytes))
	if p.Title == "" {
		return Preview{}, ErrNoPreview
	}
	return p, nil
}

func (p Preview) Render(rawURL string) string {
	var b strings.Builder
	b.WriteString(rawURL)
	if p.SiteName != "" {
		b.WriteString("\n来源: " + p.SiteName)
	}
	b.WriteString("\n标题: " + p.Title)
	if p.Description != "" {
		b.WriteString("\n描述: " + p.Description)
	}
	return b.String()
}

func parse(r io.Reader) Preview {
	var p Preview
	var inTitle bool
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return p
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "meta":
				prop, content := metaAttrs(tok)
				switch prop {
				case "og:title":
					p.Title = content
				case "og:description", "description":
					if p.Description == "" {
						p.Description = content
					}
				case "og:site_name":
					p.SiteName = content
				}
			case "title":
				inTitle = true
			case "body":
				// metadata lives in head; stop early
				return p
			}
		case html.TextToken:
			if inTitle && p.Title == "" {
				p.Title = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if z.Token().Data == "title" {
				inTitle = false
			}
		}
	}
}

func metaAttrs(tok html.Token) (prop, content string) {
	for _, a := range tok.Attr {
		switch a.Key {
		case "property", "name":
			prop = a.Val
		case "content":
			content = strings.TrimSpace(a.Val)
		}
	}
	return prop, content
}
