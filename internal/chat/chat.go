// Package chat provides the chat notification channel and the inbound
// command interface. The real transport is a Telegram bot.
package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/notify"
)

// Message is one inbound text message.
type Message struct {
	ChatID int64
	From   string
	Text   string
}

// Transport sends text to a chat and fetches pending inbound messages.
type Transport interface {
	Send(ctx context.Context, chatID int64, text string) error
	Updates(ctx context.Context) ([]Message, error)
	// Commit marks every message returned by Updates as handled, so a new
	// process does not receive them again.
	Commit(ctx context.Context) error
}

// Channel sends door notifications to the owner chat.
type Channel struct {
	transport Transport
	chatID    int64
	log       zerolog.Logger
}

// NewChannel creates a Channel that always sends to chatID.
func NewChannel(transport Transport, chatID int64, log zerolog.Logger) *Channel {
	return &Channel{transport: transport, chatID: chatID, log: log}
}

// Send delivers text. A transport error is logged and reported as ConnectionFailed.
func (c *Channel) Send(ctx context.Context, text string) notify.Result {
	if err := c.transport.Send(ctx, c.chatID, text); err != nil {
		c.log.Warn().Err(err).Int64("chat_id", c.chatID).Msg("chat send failed")
		return notify.ConnectionFailed
	}
	return notify.Success
}
