package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sabotage/go/internal/game/events"
)

type recordingNotifier struct {
	ticks chan int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ticks: make(chan int, 256)}
}

func (n *recordingNotifier) BroadcastToRoom(roomID string, ev *events.Event) {
	var p events.TimerPayload
	if err := ev.Decode(&p); err == nil {
		n.ticks <- p.TimeRemaining
	}
}

func (n *recordingNotifier) next(t *testing.T) int {
	t.Helper()
	select {
	case v := <-n.ticks:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
	return -1
}

type failingRecorder struct {
	mu    sync.Mutex
	calls int
}

func (r *failingRecorder) UpdateRoomTimer(ctx context.Context, roomID string, seconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return errors.New("store down")
}

func newController(t *testing.T, rec Recorder) (*Controller, *clockwork.FakeClock, *recordingNotifier) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	n := newRecordingNotifier()
	c := NewController(Config{
		Name:         "round",
		EventType:    events.EventTypeTimerUpdate,
		DefaultTicks: 10,
		Interval:     time.Second,
	}, clock, n, rec)
	t.Cleanup(c.StopAll)
	return c, clock, n
}

func tick(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("expected a running ticker: %v", err)
	}
	clock.Advance(time.Second)
}

func TestCountdownReachesZero(t *testing.T) {
	rec := &failingRecorder{}
	c, clock, n := newController(t, rec)

	fired := make(chan string, 1)
	c.Start("ROOM01", 3, func(roomID string) { fired <- roomID })

	if v := n.next(t); v != 3 {
		t.Fatalf("expected initial 3, got %d", v)
	}
	for _, want := range []int{2, 1, 0} {
		tick(t, clock)
		if v := n.next(t); v != want {
			t.Fatalf("expected %d, got %d", want, v)
		}
	}

	select {
	case id := <-fired:
		if id != "ROOM01" {
			t.Fatalf("expected ROOM01, got %s", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected callback at zero")
	}
	if c.Running("ROOM01") {
		t.Fatal("expected countdown removed after zero")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls != 4 {
		t.Fatalf("expected 4 persist attempts despite failures, got %d", rec.calls)
	}
}

func TestPauseResumeKeepsRemaining(t *testing.T) {
	c, clock, n := newController(t, nil)
	c.Start("ROOM01", 45, nil)
	n.next(t)

	for i := 0; i < 3; i++ {
		tick(t, clock)
		n.next(t)
	}

	remaining, ok := c.Pause("ROOM01")
	if !ok || remaining != 42 {
		t.Fatalf("expected paused at 42, got %d (ok=%v)", remaining, ok)
	}
	if c.Running("ROOM01") {
		t.Fatal("expected countdown cancelled on pause")
	}

	clock.Advance(10 * time.Second)
	select {
	case v := <-n.ticks:
		t.Fatalf("expected no ticks while paused, got %d", v)
	case <-time.After(20 * time.Millisecond):
	}

	c.Resume("ROOM01")
	if v := n.next(t); v != 42 {
		t.Fatalf("expected resume at 42, got %d", v)
	}
	tick(t, clock)
	if v := n.next(t); v != 41 {
		t.Fatalf("expected 41, got %d", v)
	}
}

func TestResumeWithoutSnapshotUsesDefault(t *testing.T) {
	c, _, n := newController(t, nil)

	var called bool
	c.SetDefaultCallback(func(string) { called = true })
	c.Resume("ROOM01")

	if v := n.next(t); v != 10 {
		t.Fatalf("expected default 10, got %d", v)
	}
	if !c.Running("ROOM01") {
		t.Fatal("expected countdown running")
	}
	if called {
		t.Fatal("callback must not run before zero")
	}
}

func TestStartReplacesExisting(t *testing.T) {
	c, clock, n := newController(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c.Start("ROOM01", 5, nil)
	n.next(t)
	c.Start("ROOM01", 8, nil)
	n.next(t)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("expected exactly one ticker: %v", err)
	}
	clock.Advance(time.Second)
	if v := n.next(t); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
}

func TestPauseNoopWhenIdle(t *testing.T) {
	c, _, _ := newController(t, nil)
	if _, ok := c.Pause("nope"); ok {
		t.Fatal("expected pause to be a no-op")
	}
	c.Stop("nope")
	if _, ok := c.Remaining("nope"); ok {
		t.Fatal("expected nothing remaining")
	}
}
