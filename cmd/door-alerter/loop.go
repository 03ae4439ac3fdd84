package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/chat"
	"github.com/sweeney/door-alerter/internal/gpio"
	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/monitor"
	"github.com/sweeney/door-alerter/internal/mqtt"
	"github.com/sweeney/door-alerter/internal/notify"
	"github.com/sweeney/door-alerter/internal/prefs"
	"github.com/sweeney/door-alerter/internal/status"
)

// errRestart is returned by the loop when a restart was requested.
var errRestart = errors.New("restart requested")

// RestartReasonTTL is persisted when the device TTL elapses.
const RestartReasonTTL = "TTL reached"

// loop owns every per-iteration activity. It runs on one goroutine.
type loop struct {
	reader     gpio.Reader
	mon        *monitor.Monitor
	bot        *chat.Bot
	chatGate   *logic.Gate
	chat       *chat.Channel
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	prefs      prefs.Store
	ttl        time.Duration
	heartbeat  time.Duration
	startTime  time.Time
	now        func() time.Time
	notify     func(state string)
	log        zerolog.Logger

	restartReason string
}

// requestRestart is called by the chat bot. The loop acts on it after the
// current iteration.
func (l *loop) requestRestart(reason string) {
	l.restartReason = reason
}

// boot reports the previous restart reason once, then announces startup.
// The reason stays stored until chat delivery succeeds, or when chat is off.
func (l *loop) boot(ctx context.Context) {
	reason, err := prefs.RestartReason(ctx, l.prefs)
	if err != nil {
		l.log.Warn().Err(err).Msg("read restart reason failed")
	}
	if reason != "" {
		l.log.Info().Str("reason", reason).Msg("device restarted")
		l.tracker.SetRestartReason(reason)
		if l.chat == nil || l.chat.Send(ctx, "Device restarted: "+reason) == notify.Success {
			if err := l.prefs.Delete(ctx, prefs.KeyRestartReason); err != nil {
				l.log.Warn().Err(err).Msg("clear restart reason failed")
			}
		}
	}

	l.publishSystem("STARTUP", reason)
	l.sdNotify(daemon.SdNotifyReady)
}

func (l *loop) run(ctx context.Context, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			l.log.Info().Str("signal", name).Msg("shutting down")
			l.sdNotify(daemon.SdNotifyStopping)
			l.publishSystem("SHUTDOWN", name)
			return nil

		case <-tick:
			t := l.now()
			l.pollDoor(ctx, t)

			if l.bot != nil && l.chatGate.Ready(t) {
				l.bot.Poll(ctx)
			}

			l.refreshStatus()

			if hb := l.mon.CheckHeartbeat(t, l.heartbeat); hb != nil {
				l.log.Debug().Dur("uptime", hb.Uptime).Str("door", string(hb.State)).Msg("heartbeat")
				l.publishSystem("HEARTBEAT", "")
			}

			l.sdNotify(daemon.SdNotifyWatchdog)

			if l.restartReason == "" && l.ttl > 0 && t.Sub(l.startTime) >= l.ttl {
				l.restartReason = RestartReasonTTL
			}
			if l.restartReason != "" {
				return l.restart(ctx, l.restartReason)
			}
		}
	}
}

// pollDoor reads the sensor only when the door gate is open. A read error
// leaves the gate open so the next tick retries.
func (l *loop) pollDoor(ctx context.Context, t time.Time) {
	if !l.mon.Due(t) {
		return
	}
	open, err := l.reader.Read()
	if err != nil {
		l.log.Warn().Err(err).Msg("gpio read error")
		return
	}
	if tr := l.mon.Check(ctx, logic.StateFromOpen(open), t); tr != logic.NoChange {
		l.log.Info().Str("transition", string(tr)).Str("door", string(l.mon.State())).Msg("door event")
	}
}

// restart persists reason and stops the loop. The in-memory incident handle
// is lost across the restart.
func (l *loop) restart(ctx context.Context, reason string) error {
	l.log.Warn().Str("reason", reason).Msg("restarting")
	if err := l.prefs.Set(ctx, prefs.KeyRestartReason, reason); err != nil {
		l.log.Error().Err(err).Msg("persist restart reason failed")
	}
	if l.bot != nil {
		l.bot.Commit(ctx)
	}
	l.sdNotify(daemon.SdNotifyStopping)
	l.publishSystem("RESTART", reason)
	return fmt.Errorf("%w: %s", errRestart, reason)
}

func (l *loop) refreshStatus() {
	l.tracker.Update(l.mon.State(), l.mon.Polled(), l.mon.IncidentOpen(), l.mon.Counts())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishSystem(event, reason string) {
	if l.publisher == nil {
		return
	}
	l.refreshStatus()
	snap := l.tracker.Snapshot()
	err := l.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		l.log.Warn().Err(err).Str("event", event).Msg("system event publish failed")
	}
}

func (l *loop) sdNotify(state string) {
	if l.notify != nil {
		l.notify(state)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
