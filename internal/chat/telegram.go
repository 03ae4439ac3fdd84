package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram is a Transport over the Telegram Bot API.
// Inbound updates are fetched with a non-blocking getUpdates call so the
// caller decides when to check.
type Telegram struct {
	bot    *tele.Bot
	offset int
}

// NewTelegram creates a Telegram transport. timeout bounds each API request.
// No request is made until the first Send or Updates, so an unreachable API
// at startup does not fail construction.
func NewTelegram(token string, timeout time.Duration) (*Telegram, error) {
	return newTelegram(tele.DefaultApiURL, token, timeout)
}

func newTelegram(apiURL, token string, timeout time.Duration) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: b}, nil
}

// Send delivers text to chatID.
func (t *Telegram) Send(_ context.Context, chatID int64, text string) error {
	if _, err := t.bot.Send(&tele.Chat{ID: chatID}, text); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Updates returns messages received since the previous call.
func (t *Telegram) Updates(_ context.Context) ([]Message, error) {
	data, err := t.bot.Raw("getUpdates", map[string]string{
		"offset":          strconv.Itoa(t.offset),
		"timeout":         "0",
		"allowed_updates": `["message"]`,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: %w", err)
	}

	var resp struct {
		Result []tele.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}

	var msgs []Message
	for _, u := range resp.Result {
		if u.ID >= t.offset {
			t.offset = u.ID + 1
		}
		m := u.Message
		if m == nil || m.Chat == nil {
			continue
		}
		from := ""
		if m.Sender != nil {
			from = m.Sender.FirstName
		}
		msgs = append(msgs, Message{ChatID: m.Chat.ID, From: from, Text: m.Text})
	}
	return msgs, nil
}

// Commit confirms every update returned so far. Telegram drops updates only
// when a later getUpdates call passes a higher offset.
func (t *Telegram) Commit(_ context.Context) error {
	if t.offset == 0 {
		return nil
	}
	if _, err := t.bot.Raw("getUpdates", map[string]string{
		"offset":  strconv.Itoa(t.offset),
		"limit":   "1",
		"timeout": "0",
	}); err != nil {
		return fmt.Errorf("telegram commit: %w", err)
	}
	return nil
}
