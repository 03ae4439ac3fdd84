package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/door-alerter/internal/logic"
)

// Fixed replies.
const (
	ReplyForbidden      = "403 FORBIDDEN"
	ReplyRestartPrompt  = "Restart the device? Reply /yes to confirm or /no to cancel."
	ReplyRestarting     = "Restarting..."
	ReplyRestartAborted = "Restart cancelled"
	ReplyUnknown        = "Unknown command. Available: /status /uptime /stats /test /ack /restart"
	ReplyTestStarted    = "Self-test started: the current door state will be re-announced on the next check"
)

// RestartReasonChat is persisted when a restart is confirmed over chat.
const RestartReasonChat = "restart requested via chat"

// Door is the read/act surface of the door monitor used by commands.
type Door interface {
	State() logic.DoorState
	IncidentOpen() bool
	Counts() logic.Counts
	// Acknowledge acknowledges the held incident. held is false when none is held.
	Acknowledge(ctx context.Context) (held, ok bool)
	SelfTest(ctx context.Context)
}

// BotConfig configures the command handler.
type BotConfig struct {
	// Owner is the only chat allowed to issue commands.
	Owner     int64
	StartTime time.Time
	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
	// Restart is called after a confirmed /restart.
	Restart func(reason string)
}

// Bot handles inbound commands from the owner chat.
type Bot struct {
	transport      Transport
	door           Door
	cfg            BotConfig
	forbidden      *rate.Limiter
	pendingRestart bool
	log            zerolog.Logger
}

// NewBot creates a command handler.
func NewBot(transport Transport, door Door, cfg BotConfig, log zerolog.Logger) *Bot {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Bot{
		transport: transport,
		door:      door,
		cfg:       cfg,
		forbidden: rate.NewLimiter(rate.Every(time.Second), 3),
		log:       log,
	}
}

// Poll fetches pending messages and handles each in order.
func (b *Bot) Poll(ctx context.Context) {
	msgs, err := b.transport.Updates(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("chat updates failed")
		return
	}
	for _, m := range msgs {
		b.Handle(ctx, m)
	}
}

// Commit confirms the messages handled so far with the transport.
func (b *Bot) Commit(ctx context.Context) {
	if err := b.transport.Commit(ctx); err != nil {
		b.log.Warn().Err(err).Msg("chat commit failed")
	}
}

// Handle processes one inbound message.
func (b *Bot) Handle(ctx context.Context, m Message) {
	if m.ChatID != b.cfg.Owner {
		b.log.Warn().Int64("chat_id", m.ChatID).Str("from", m.From).Msg("command from unknown chat")
		if b.forbidden.AllowN(b.cfg.Now(), 1) {
			b.reply(ctx, m.ChatID, ReplyForbidden)
		}
		return
	}

	cmd := command(m.Text)
	b.log.Info().Str("command", cmd).Str("from", m.From).Msg("chat command")

	if b.pendingRestart {
		b.pendingRestart = false
		switch cmd {
		case "/yes":
			b.reply(ctx, m.ChatID, ReplyRestarting)
			if b.cfg.Restart != nil {
				b.cfg.Restart(RestartReasonChat)
			}
			return
		case "/no":
			b.reply(ctx, m.ChatID, ReplyRestartAborted)
			return
		}
	}

	switch cmd {
	case "/status":
		b.reply(ctx, m.ChatID, b.statusText())
	case "/uptime":
		b.reply(ctx, m.ChatID, FormatUptime(b.cfg.Now().Sub(b.cfg.StartTime)))
	case "/stats":
		b.reply(ctx, m.ChatID, FormatCounts(b.door.Counts()))
	case "/test":
		b.reply(ctx, m.ChatID, ReplyTestStarted)
		b.door.SelfTest(ctx)
	case "/ack":
		b.reply(ctx, m.ChatID, b.ack(ctx))
	case "/restart":
		b.pendingRestart = true
		b.reply(ctx, m.ChatID, ReplyRestartPrompt)
	default:
		b.reply(ctx, m.ChatID, ReplyUnknown)
	}
}

func (b *Bot) statusText() string {
	var s string
	switch b.door.State() {
	case logic.StateOpen:
		s = "Garage door is currently open"
	case logic.StateClosed:
		s = "Garage door is currently closed"
	default:
		s = "Garage door state is unknown"
	}
	if b.door.IncidentOpen() {
		s += "\nIncident: open"
	}
	return s
}

func (b *Bot) ack(ctx context.Context) string {
	held, ok := b.door.Acknowledge(ctx)
	switch {
	case !held:
		return "No open incident"
	case ok:
		return "Incident acknowledged"
	default:
		return "Incident acknowledge failed"
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.transport.Send(ctx, chatID, text); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("chat reply failed")
	}
}

// command normalizes "/status@MyBot extra" to "/status".
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	cmd := fields[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// FormatUptime renders d as "D days, H hours, M minutes, S seconds".
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	days := int(d.Hours()) / 24
	h := int(d.Hours()) % 24
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d days, %d hours, %d minutes, %d seconds", days, h, m, s)
}

// FormatCounts renders monitor counters for /stats.
func FormatCounts(c logic.Counts) string {
	return fmt.Sprintf("Openings: %d\nClosings: %d\nSuppressed: %d\nIncidents created: %d\nIncidents resolved: %d\nNotification failures: %d",
		c.Openings, c.Closings, c.Suppressed, c.IncidentsCreated, c.IncidentsResolved, c.NotifyFailures)
}
