package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNewDetector(t *testing.T) {
	d := NewDetector(2*time.Second, t0)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.State() != StateUnknown {
		t.Errorf("expected initial state UNKNOWN, got %s", d.State())
	}
	if d.Polled() {
		t.Error("new detector should not have polled")
	}
	if !d.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, d.lastHeartbeat)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		prev DoorState
		cur  DoorState
		want Transition
	}{
		{StateUnknown, StateOpen, OpeningDetected},
		{StateUnknown, StateClosed, ClosingDetected},
		{StateClosed, StateOpen, OpeningDetected},
		{StateOpen, StateClosed, ClosingDetected},
		{StateOpen, StateOpen, NoChange},
		{StateClosed, StateClosed, NoChange},
	}

	for _, tt := range tests {
		got := Classify(tt.prev, tt.cur)
		if got != tt.want {
			t.Errorf("Classify(%s, %s) = %s, want %s", tt.prev, tt.cur, got, tt.want)
		}
	}
}

func TestStateFromOpen(t *testing.T) {
	if StateFromOpen(true) != StateOpen {
		t.Error("StateFromOpen(true) should be OPEN")
	}
	if StateFromOpen(false) != StateClosed {
		t.Error("StateFromOpen(false) should be CLOSED")
	}
}

func TestFirstPollOpenWins(t *testing.T) {
	d := NewDetector(2*time.Second, t0)

	if tr := d.Poll(StateOpen, t0); tr != OpeningDetected {
		t.Fatalf("first open poll: expected OPENING, got %s", tr)
	}
	if tr := d.Poll(StateOpen, t0.Add(2*time.Second)); tr != NoChange {
		t.Errorf("second open poll: expected NO_CHANGE, got %s", tr)
	}
}

func TestFirstPollClosedWins(t *testing.T) {
	d := NewDetector(2*time.Second, t0)

	if tr := d.Poll(StateClosed, t0); tr != ClosingDetected {
		t.Fatalf("first closed poll: expected CLOSING, got %s", tr)
	}
	if tr := d.Poll(StateClosed, t0.Add(2*time.Second)); tr != NoChange {
		t.Errorf("second closed poll: expected NO_CHANGE, got %s", tr)
	}
	if d.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", d.State())
	}
}

func TestRepeatedReadingYieldsNoChange(t *testing.T) {
	d := NewDetector(time.Second, t0)
	readings := []DoorState{StateClosed, StateOpen, StateOpen, StateClosed, StateClosed, StateOpen}
	want := []Transition{ClosingDetected, OpeningDetected, NoChange, ClosingDetected, NoChange, OpeningDetected}

	for i, r := range readings {
		got := d.Poll(r, t0.Add(time.Duration(i)*time.Second))
		if got != want[i] {
			t.Errorf("poll %d (%s): got %s, want %s", i, r, got, want[i])
		}
	}
}

func TestPollInsideIntervalIsNoop(t *testing.T) {
	d := NewDetector(2*time.Second, t0)
	d.Poll(StateClosed, t0)

	// Door opens but the poll is gated
	if tr := d.Poll(StateOpen, t0.Add(1999*time.Millisecond)); tr != NoChange {
		t.Errorf("gated poll: expected NO_CHANGE, got %s", tr)
	}
	if d.State() != StateClosed {
		t.Errorf("gated poll must not move state, got %s", d.State())
	}

	// Exactly at the interval the poll executes
	if tr := d.Poll(StateOpen, t0.Add(2*time.Second)); tr != OpeningDetected {
		t.Errorf("poll at interval: expected OPENING, got %s", tr)
	}
}

func TestGatedPollDoesNotRestartInterval(t *testing.T) {
	d := NewDetector(2*time.Second, t0)
	d.Poll(StateClosed, t0)

	d.Poll(StateOpen, t0.Add(time.Second))
	if tr := d.Poll(StateOpen, t0.Add(2*time.Second)); tr != OpeningDetected {
		t.Errorf("expected OPENING two seconds after the executed poll, got %s", tr)
	}
}

func TestReset(t *testing.T) {
	d := NewDetector(time.Second, t0)
	d.Poll(StateClosed, t0)

	d.Reset()
	if d.State() != StateUnknown {
		t.Errorf("expected UNKNOWN after reset, got %s", d.State())
	}

	if tr := d.Poll(StateClosed, t0.Add(time.Second)); tr != ClosingDetected {
		t.Errorf("expected CLOSING to be re-announced after reset, got %s", tr)
	}
}

func TestDue(t *testing.T) {
	d := NewDetector(2*time.Second, t0)
	if !d.Due(t0) {
		t.Error("first poll should always be due")
	}
	d.Poll(StateClosed, t0)
	if d.Due(t0.Add(time.Second)) {
		t.Error("poll should not be due inside interval")
	}
	if !d.Due(t0.Add(2 * time.Second)) {
		t.Error("poll should be due at interval")
	}
}

// Heartbeat tests

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	d := NewDetector(time.Second, t0)
	d.Poll(StateClosed, t0)

	if hb := d.CheckHeartbeat(t0.Add(15*time.Minute), 0); hb != nil {
		t.Error("should not return heartbeat when interval is 0 (disabled)")
	}
	if hb := d.CheckHeartbeat(t0.Add(15*time.Minute), -time.Minute); hb != nil {
		t.Error("should not return heartbeat when interval is negative")
	}
}

func TestCheckHeartbeatBeforeFirstPoll(t *testing.T) {
	d := NewDetector(time.Second, t0)

	if hb := d.CheckHeartbeat(t0.Add(15*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before first poll")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	d := NewDetector(time.Second, t0)
	d.Poll(StateOpen, t0)

	if hb := d.CheckHeartbeat(t0.Add(14*time.Minute), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat before interval")
	}

	checkTime := t0.Add(15 * time.Minute)
	hb := d.CheckHeartbeat(checkTime, 15*time.Minute)
	if hb == nil {
		t.Fatal("should return heartbeat at interval")
	}
	if !hb.Timestamp.Equal(checkTime) {
		t.Errorf("expected timestamp %v, got %v", checkTime, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
	if hb.State != StateOpen {
		t.Errorf("expected state OPEN, got %s", hb.State)
	}

	if hb := d.CheckHeartbeat(checkTime.Add(time.Second), 15*time.Minute); hb != nil {
		t.Error("should not return heartbeat immediately after previous")
	}
}
