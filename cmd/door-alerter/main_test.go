package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/chat"
	"github.com/sweeney/door-alerter/internal/config"
	"github.com/sweeney/door-alerter/internal/gpio"
	"github.com/sweeney/door-alerter/internal/incident"
	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/monitor"
	"github.com/sweeney/door-alerter/internal/mqtt"
	"github.com/sweeney/door-alerter/internal/prefs"
	"github.com/sweeney/door-alerter/internal/status"
)

const (
	owner    = int64(42)
	testPoll = 500 * time.Millisecond
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from the loop goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (bool, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return false, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type fixture struct {
	l         *loop
	pub       *mqtt.FakePublisher
	transport *chat.FakeTransport
	incidents *incident.FakeClient
	store     *prefs.MemoryStore
	notified  []string
}

func newFixture(t *testing.T, reader gpio.Reader, clock func() time.Time) *fixture {
	t.Helper()
	log := zerolog.Nop()
	f := &fixture{
		pub:       mqtt.NewFakePublisher(),
		transport: &chat.FakeTransport{},
		incidents: incident.NewFakeClient(),
		store:     prefs.NewMemoryStore(),
	}
	channel := chat.NewChannel(f.transport, owner, log)
	mon := monitor.New(monitor.Config{PollInterval: testPoll}, monitor.Deps{
		Chat:      channel,
		Incidents: f.incidents,
		Events:    f.pub,
	}, t0, log)

	f.l = &loop{
		reader:     reader,
		mon:        mon,
		chat:       channel,
		publisher:  f.pub,
		mqttStatus: f.pub,
		tracker:    status.NewTracker(t0, status.Config{}),
		prefs:      f.store,
		startTime:  t0,
		now:        clock,
		notify:     func(s string) { f.notified = append(f.notified, s) },
		log:        log,
	}
	f.l.bot = chat.NewBot(f.transport, mon, chat.BotConfig{
		Owner:     owner,
		StartTime: t0,
		Now:       func() time.Time { return t0 },
		Restart:   f.l.requestRestart,
	}, log)
	f.l.chatGate = logic.NewGate(testPoll)
	return f
}

// drive feeds nTicks ticks, then the signal (if any), and returns the loop error.
func (f *fixture) drive(nTicks int, signal os.Signal) error {
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- f.l.run(context.Background(), tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		select {
		case tick <- time.Time{}:
		case err := <-errCh:
			return err
		}
	}
	if signal != nil {
		sig <- signal
	}
	return <-errCh
}

func transitions(events []logic.Event) []logic.Transition {
	out := make([]logic.Transition, len(events))
	for i, e := range events {
		out[i] = e.Transition
	}
	return out
}

func TestRunLoopFirstPollAnnouncesState(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))

	if err := f.drive(4, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(f.pub.Events) != 1 || f.pub.Events[0].Transition != logic.ClosingDetected {
		t.Fatalf("events: got %v, want [CLOSING]", transitions(f.pub.Events))
	}
	if got := f.transport.Texts(); len(got) != 1 || got[0] != monitor.MsgClosed {
		t.Errorf("chat: got %v", got)
	}
	names := f.pub.SystemEventNames()
	if len(names) != 1 || names[0] != "SHUTDOWN" {
		t.Errorf("system events: got %v, want [SHUTDOWN]", names)
	}
}

func TestRunLoopOpenCloseCycle(t *testing.T) {
	reader := gpio.NewFakeReader(false, false, true, true, false)
	f := newFixture(t, reader, fakeClock(t0, testPoll))

	if err := f.drive(5, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	want := []logic.Transition{logic.ClosingDetected, logic.OpeningDetected, logic.ClosingDetected}
	got := transitions(f.pub.Events)
	if len(got) != len(want) {
		t.Fatalf("events: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
	if len(f.incidents.Created) != 1 || len(f.incidents.Resolved) != 1 {
		t.Errorf("incidents: created %d resolved %d, want 1/1", len(f.incidents.Created), len(f.incidents.Resolved))
	}

	snap := f.l.tracker.Snapshot()
	if snap.Door != logic.StateClosed || snap.IncidentOpen {
		t.Errorf("tracker: door %s incident %v", snap.Door, snap.IncidentOpen)
	}
	if snap.Counts.Openings != 1 || snap.Counts.Closings != 2 {
		t.Errorf("tracker counts: %+v", snap.Counts)
	}
}

func TestRunLoopPollGate(t *testing.T) {
	reader := gpio.NewFakeReader(false)
	f := newFixture(t, reader, fakeClock(t0, 100*time.Millisecond))

	if err := f.drive(10, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	// Ticks at 0..900ms with a 500ms gate poll at 0 and 500ms.
	if reader.Reads != 2 {
		t.Errorf("reads: got %d, want 2", reader.Reads)
	}
}

func TestRunLoopGPIOErrorRetriesNextTick(t *testing.T) {
	reader := &faultReader{inner: gpio.NewFakeReader(true), faultStart: 0, faultEnd: 2}
	f := newFixture(t, reader, fakeClock(t0, 100*time.Millisecond))

	if err := f.drive(3, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if reader.call != 3 {
		t.Errorf("read attempts: got %d, want 3", reader.call)
	}
	if len(f.pub.Events) != 1 || f.pub.Events[0].Transition != logic.OpeningDetected {
		t.Errorf("events: got %v, want [OPENING]", transitions(f.pub.Events))
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	f.l.heartbeat = time.Second

	// Ticks at 0, 0.5, 1.0, 1.5, 2.0s: heartbeats at 1.0s and 2.0s.
	if err := f.drive(5, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	n := 0
	for _, name := range f.pub.SystemEventNames() {
		if name == "HEARTBEAT" {
			n++
		}
	}
	if n != 2 {
		t.Errorf("heartbeats: got %d, want 2 (%v)", n, f.pub.SystemEventNames())
	}
}

func TestRunLoopShutdownReason(t *testing.T) {
	for _, tc := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	} {
		f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
		if err := f.drive(1, tc.sig); err != nil {
			t.Fatalf("run returned error: %v", err)
		}

		last := f.pub.SystemEvents[len(f.pub.SystemEvents)-1]
		if last.Event != "SHUTDOWN" || last.Reason != tc.want {
			t.Errorf("%s: got %s/%s", tc.want, last.Event, last.Reason)
		}
		if !strings.Contains(string(last.RawPayload), `"reason":"`+tc.want+`"`) {
			t.Errorf("%s: payload %s", tc.want, last.RawPayload)
		}
		if f.notified[len(f.notified)-1] != daemon.SdNotifyStopping {
			t.Errorf("%s: last sd_notify %q", tc.want, f.notified[len(f.notified)-1])
		}
	}
}

func TestRunLoopTTLRestart(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	f.l.ttl = time.Second

	err := f.drive(10, nil)
	if !errors.Is(err, errRestart) {
		t.Fatalf("run: got %v, want errRestart", err)
	}

	reason, getErr := f.store.Get(context.Background(), prefs.KeyRestartReason)
	if getErr != nil || reason != RestartReasonTTL {
		t.Errorf("persisted reason: got %q (%v)", reason, getErr)
	}
	names := f.pub.SystemEventNames()
	if names[len(names)-1] != "RESTART" {
		t.Errorf("system events: got %v, want trailing RESTART", names)
	}
}

func TestRunLoopChatRestartConfirmed(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	f.transport.Inbox = []chat.Message{
		{ChatID: owner, Text: "/restart"},
		{ChatID: owner, Text: "/yes"},
	}

	err := f.drive(3, nil)
	if !errors.Is(err, errRestart) {
		t.Fatalf("run: got %v, want errRestart", err)
	}

	reason, _ := f.store.Get(context.Background(), prefs.KeyRestartReason)
	if reason != chat.RestartReasonChat {
		t.Errorf("persisted reason: got %q", reason)
	}
	if f.transport.Commits != 1 {
		t.Errorf("handled chat updates should be committed before restart, got %d commits", f.transport.Commits)
	}
}

func TestRunLoopChatForbidden(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	f.transport.Inbox = []chat.Message{{ChatID: 7, Text: "/restart"}, {ChatID: 7, Text: "/yes"}}

	if err := f.drive(2, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	forbidden := 0
	for _, s := range f.transport.Sent {
		if s.Text == chat.ReplyForbidden && s.ChatID == 7 {
			forbidden++
		}
	}
	if forbidden != 2 {
		t.Errorf("forbidden replies: got %d, want 2", forbidden)
	}
}

func TestBootReportsRestartReasonOnce(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	ctx := context.Background()
	_ = f.store.Set(ctx, prefs.KeyRestartReason, RestartReasonTTL)

	f.l.boot(ctx)

	if got := f.transport.Texts(); len(got) != 1 || got[0] != "Device restarted: TTL reached" {
		t.Errorf("chat: got %v", got)
	}
	if _, err := f.store.Get(ctx, prefs.KeyRestartReason); !errors.Is(err, prefs.ErrNotFound) {
		t.Errorf("restart reason should be cleared, got %v", err)
	}
	if f.l.tracker.Snapshot().RestartReason != RestartReasonTTL {
		t.Error("tracker should carry the restart reason")
	}
	if len(f.pub.SystemEvents) != 1 || f.pub.SystemEvents[0].Event != "STARTUP" || f.pub.SystemEvents[0].Reason != RestartReasonTTL {
		t.Errorf("system events: got %+v", f.pub.SystemEvents)
	}
	if len(f.notified) != 1 || f.notified[0] != daemon.SdNotifyReady {
		t.Errorf("sd_notify: got %v", f.notified)
	}

	f.transport.Sent = nil
	f.l.boot(ctx)
	if len(f.transport.Sent) != 0 {
		t.Errorf("second boot should not report, got %v", f.transport.Texts())
	}
}

func TestBootKeepsRestartReasonWhenChatFails(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	ctx := context.Background()
	_ = f.store.Set(ctx, prefs.KeyRestartReason, RestartReasonTTL)
	f.transport.SendError = errors.New("network down")

	f.l.boot(ctx)
	if reason, _ := f.store.Get(ctx, prefs.KeyRestartReason); reason != RestartReasonTTL {
		t.Fatalf("reason should survive a failed report, got %q", reason)
	}

	f.transport.SendError = nil
	f.l.boot(ctx)
	if got := f.transport.Texts(); len(got) != 1 || got[0] != "Device restarted: TTL reached" {
		t.Errorf("chat: got %v", got)
	}
	if _, err := f.store.Get(ctx, prefs.KeyRestartReason); !errors.Is(err, prefs.ErrNotFound) {
		t.Errorf("restart reason should be cleared after delivery, got %v", err)
	}
}

func TestBootClearsRestartReasonWithoutChat(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(false), fakeClock(t0, testPoll))
	ctx := context.Background()
	_ = f.store.Set(ctx, prefs.KeyRestartReason, chat.RestartReasonChat)
	f.l.chat = nil

	f.l.boot(ctx)
	if _, err := f.store.Get(ctx, prefs.KeyRestartReason); !errors.Is(err, prefs.ErrNotFound) {
		t.Errorf("restart reason should be cleared, got %v", err)
	}
	if f.l.tracker.Snapshot().RestartReason != chat.RestartReasonChat {
		t.Error("tracker should carry the restart reason")
	}
}

func TestRunLoopWithoutPublisher(t *testing.T) {
	f := newFixture(t, gpio.NewFakeReader(true), fakeClock(t0, testPoll))
	f.l.publisher = nil
	f.l.mqttStatus = nil

	if err := f.drive(2, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(f.pub.SystemEvents) != 0 {
		t.Errorf("no system events expected without a publisher")
	}
}

func TestPrintDoorState(t *testing.T) {
	for _, tc := range []struct {
		open bool
		want string
	}{
		{true, "Door: OPEN\n"},
		{false, "Door: CLOSED\n"},
	} {
		var buf bytes.Buffer
		if err := printDoorState(gpio.NewFakeReader(tc.open), &buf); err != nil {
			t.Fatalf("printDoorState: %v", err)
		}
		if buf.String() != tc.want {
			t.Errorf("got %q, want %q", buf.String(), tc.want)
		}
	}

	reader := gpio.NewFakeReader()
	if err := printDoorState(reader, &bytes.Buffer{}); err == nil {
		t.Error("expected error from empty reader")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.Log{Level: "warn", JSON: true}, &buf)

	log.Info().Msg("hidden")
	monLog := component(log, "monitor")
	monLog.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"component":"monitor"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestNewLoggerBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(config.Log{Level: "loud", JSON: true}, &buf)
	log.Debug().Msg("debug")
	log.Info().Msg("info")

	if strings.Contains(buf.String(), `"debug"`) || !strings.Contains(buf.String(), `"info"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
