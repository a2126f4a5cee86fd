package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/mcdev12/sabotage/go/internal/store"
)

type sentEvent struct {
	to    string
	event *events.Event
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (b *recordingBroadcaster) BroadcastToRoom(roomID string, ev *events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentEvent{event: ev})
}

func (b *recordingBroadcaster) SendToPlayer(roomID, playerID string, ev *events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentEvent{to: playerID, event: ev})
}

// find returns events of type et. to == "" matches room broadcasts only.
func (b *recordingBroadcaster) find(et events.EventType, to string) []*events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*events.Event
	for _, s := range b.sent {
		if s.event.Type == et && s.to == to {
			out = append(out, s.event)
		}
	}
	return out
}

func (b *recordingBroadcaster) waitN(t *testing.T, et events.EventType, to string, n int) []*events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := b.find(et, to)
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s events (to=%q), got %d", n, et, to, len(got))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (b *recordingBroadcaster) last(t *testing.T, et events.EventType, to string, dst any) {
	t.Helper()
	got := b.waitN(t, et, to, 1)
	if err := got[len(got)-1].Decode(dst); err != nil {
		t.Fatalf("decode %s: %v", et, err)
	}
}

type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) GetRoom(context.Context, string) (*models.Room, error) { return nil, errStoreDown }
func (failingStore) SaveRoom(context.Context, *models.Room) error          { return errStoreDown }
func (failingStore) DeleteRoom(context.Context, string) error              { return errStoreDown }
func (failingStore) UpdateRoomTimer(context.Context, string, int) error    { return errStoreDown }
func (failingStore) GetPlayer(context.Context, string) (*models.Player, error) {
	return nil, errStoreDown
}
func (failingStore) SavePlayer(context.Context, *models.Player) error { return errStoreDown }
func (failingStore) DeletePlayer(context.Context, string) error       { return errStoreDown }
func (failingStore) ListRoomPlayers(context.Context, string) ([]models.Player, error) {
	return nil, errStoreDown
}

type testGame struct {
	o       *Orchestrator
	clock   *clockwork.FakeClock
	events  *recordingBroadcaster
	store   store.Store
	roomID  string
	players []string
}

func newTestGame(t *testing.T, st store.Store, mutate func(*Config)) *testGame {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RoundBreakSeconds = 0
	if mutate != nil {
		mutate(&cfg)
	}
	if st == nil {
		st = store.NewMemory()
	}

	clock := clockwork.NewFakeClock()
	rec := &recordingBroadcaster{}
	o := NewOrchestrator(cfg, st, rec, nil, nil, clock)
	// The first player to join is always the saboteur.
	o.chooseSaboteur = func(int) int { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	t.Cleanup(func() {
		cancel()
		o.Shutdown()
	})
	return &testGame{o: o, clock: clock, events: rec, store: st}
}

// lobby creates a room and joins n players named p1..pn.
func (g *testGame) lobby(t *testing.T, n int) {
	t.Helper()
	roomID, err := g.o.CreateRoom("p1", "Player 1", "cat")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	g.roomID = roomID
	g.players = []string{"p1"}
	for i := 2; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		if err := g.o.JoinRoom(roomID, id, fmt.Sprintf("Player %d", i), "dog"); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
		g.players = append(g.players, id)
	}
}

// start opens a lobby of n players and starts the game with p1 as saboteur.
func (g *testGame) start(t *testing.T, n int) {
	t.Helper()
	g.lobby(t, n)
	if err := g.o.StartGame(context.Background(), g.roomID, "p1"); err != nil {
		t.Fatalf("start game: %v", err)
	}
	g.events.waitN(t, events.EventTypeGameStarted, "", 1)
}

func (g *testGame) withRoom(t *testing.T, fn func(r *roomState)) {
	t.Helper()
	r, err := g.o.lockRoom(g.roomID)
	if err != nil {
		t.Fatalf("lock room: %v", err)
	}
	defer r.mu.Unlock()
	fn(r)
}

func (g *testGame) stationsOf(t *testing.T, playerID string) []string {
	t.Helper()
	var out []string
	g.withRoom(t, func(r *roomState) {
		for _, task := range r.session.Assignments[playerID] {
			out = append(out, task.StationID)
		}
	})
	return out
}

// unassignedStation returns a station with no task for playerID.
func (g *testGame) unassignedStation(t *testing.T, playerID string) string {
	t.Helper()
	mine := map[string]bool{}
	for _, s := range g.stationsOf(t, playerID) {
		mine[s] = true
	}
	for _, s := range g.o.cfg.Stations {
		if !mine[s] {
			return s
		}
	}
	t.Fatal("every station is assigned")
	return ""
}

// tick advances the fake clock one second and waits for n more events
// of type et to be broadcast.
func (g *testGame) tick(t *testing.T, et events.EventType) {
	t.Helper()
	before := len(g.events.find(et, ""))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("expected one running clock: %v", err)
	}
	g.clock.Advance(time.Second)
	g.events.waitN(t, et, "", before+1)
}

func expectReason(t *testing.T, err error, kind error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %q, got nil", reason)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected kind %v, got %v", kind, err)
	}
	if got := Reason(err); got != reason {
		t.Fatalf("expected reason %q, got %q", reason, got)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
