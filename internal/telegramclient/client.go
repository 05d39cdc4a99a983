// Package telegramclient is the Bot API transport: long-poll updates in,
// messages out. No retries beyond the MarkdownV2 fallback chain; delivery
// failures surface as typed errors.
package telegramclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Extas/telegram-summary-bot/markdown"
)

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func New(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

type Message struct {
	MessageID     int64          `json:"message_id"`
	Date          int64          `json:"date,omitempty"`
	Chat          *Chat          `json:"chat,omitempty"`
	From          *User          `json:"from,omitempty"`
	SenderChat    *Chat          `json:"sender_chat,omitempty"`
	ReplyTo       *Message       `json:"reply_to_message,omitempty"`
	ForwardOrigin *MessageOrigin `json:"forward_origin,omitempty"`
	Text          string         `json:"text,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"` // private|group|supergroup|channel
	Title string `json:"title,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type MessageOrigin struct {
	Type       string `json:"type"`
	SenderUser *User  `json:"sender_user,omitempty"`
	SenderChat *Chat  `json:"sender_chat,omitempty"`
}

// DisplayName picks the name a message is attributed to: a channel or
// anonymous-admin title wins over the sender's own name.
func DisplayName(msg *Message) string {
	if msg == nil {
		return ""
	}
	if msg.SenderChat != nil && strings.TrimSpace(msg.SenderChat.Title) != "" {
		return strings.TrimSpace(msg.SenderChat.Title)
	}
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		return strings.TrimSpace(msg.From.FirstName)
	}
	return ""
}

type getUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

type getMeResponse struct {
	OK     bool `json:"ok"`
	Result User `json:"result"`
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type editMessageTextRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type messageResponse struct {
	OK          bool     `json:"ok"`
	ErrorCode   int      `json:"error_code,omitempty"`
	Description string   `json:"description,omitempty"`
	Result      *Message `json:"result,omitempty"`
}

// RequestError distinguishes a rejected request (the API answered with
// ok=false) from an unreachable transport (connection-level failures stay
// plain errors).
type RequestError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "telegram request failed"
	}
	desc := strings.TrimSpace(e.Description)
	if desc != "" {
		if e.StatusCode > 0 {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, desc)
		}
		return "telegram: " + desc
	}
	body := strings.TrimSpace(e.Body)
	if e.StatusCode > 0 {
		if body != "" {
			return fmt.Sprintf("telegram http %d: %s", e.StatusCode, body)
		}
		return fmt.Sprintf("telegram http %d", e.StatusCode)
	}
	if body != "" {
		return "telegram: " + body
	}
	return "telegram request failed"
}

func IsMarkdownParseError(err error) bool {
	if err == nil {
		return false
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		desc := strings.ToLower(strings.TrimSpace(reqErr.Description))
		if strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity") {
			return true
		}
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "can't parse entities") || strings.Contains(msg, "can't parse entity")
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out getMeResponse
	if err := c.get(ctx, "getMe", &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram getMe: ok=false")
	}
	return &out.Result, nil
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	method := fmt.Sprintf("getUpdates?timeout=%d", secs)
	if offset > 0 {
		method += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var out getUpdatesResponse
	if err := c.get(reqCtx, method, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SendMessage posts text to a chat and returns the new message's id.
// When MarkdownV2 is rejected for parse reasons the text is retried fully
// escaped, then as plain text, so a formatting bug degrades the message
// instead of dropping it.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text, parseMode string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}

	id, err := c.sendOnce(ctx, chatID, text, parseMode)
	if err == nil || parseMode == "" {
		return id, err
	}
	if !IsMarkdownParseError(err) {
		return 0, err
	}

	slog.Warn("markdown_send_rejected", "chat_id", chatID, "error", err.Error())
	id, err = c.sendOnce(ctx, chatID, markdown.Escape(text), parseMode)
	if err == nil {
		return id, nil
	}
	return c.sendOnce(ctx, chatID, text, "")
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}

	err := c.editOnce(ctx, chatID, messageID, text, parseMode)
	if err == nil || parseMode == "" {
		return err
	}
	if !IsMarkdownParseError(err) {
		return err
	}

	slog.Warn("markdown_edit_rejected", "chat_id", chatID, "error", err.Error())
	if err := c.editOnce(ctx, chatID, messageID, markdown.Escape(text), parseMode); err == nil {
		return nil
	}
	return c.editOnce(ctx, chatID, messageID, text, "")
}

func (c *Client) sendOnce(ctx context.Context, chatID int64, text, parseMode string) (int64, error) {
	out, err := c.post(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return 0, err
	}
	if out.Result == nil {
		return 0, nil
	}
	return out.Result.MessageID, nil
}

func (c *Client) editOnce(ctx context.Context, chatID, messageID int64, text, parseMode string) error {
	_, err := c.post(ctx, "editMessageText", editMessageTextRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: parseMode,
	})
	return err
}

func (c *Client) get(ctx context.Context, method string, out any) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) post(ctx context.Context, method string, body any) (*messageResponse, error) {
	b, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var out messageResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		return nil, &RequestError{
			StatusCode:  resp.StatusCode,
			ErrorCode:   out.ErrorCode,
			Description: out.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	return &out, nil
}
