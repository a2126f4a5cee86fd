package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/orchestrator"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/mcdev12/sabotage/go/internal/store"
)

type call struct {
	method string
	roomID string
	args   []string
}

type fakeGame struct {
	mu       sync.Mutex
	calls    []call
	rooms    map[string]string
	joinErr  error
	voteErr  error
	left     []string
	lastMove models.Position
}

func newFakeGame() *fakeGame {
	return &fakeGame{rooms: make(map[string]string)}
}

func (f *fakeGame) record(method, roomID string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method: method, roomID: roomID, args: args})
}

func (f *fakeGame) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return call{}
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeGame) CreateRoom(playerID, name, avatar string) (string, error) {
	f.record("CreateRoom", "", playerID, name, avatar)
	f.rooms[playerID] = "ROOM01"
	return "ROOM01", nil
}

func (f *fakeGame) JoinRoom(roomID, playerID, name, avatar string) error {
	f.record("JoinRoom", roomID, playerID, name, avatar)
	if f.joinErr != nil {
		return f.joinErr
	}
	f.rooms[playerID] = roomID
	return nil
}

func (f *fakeGame) Leave(playerID string) {
	f.left = append(f.left, playerID)
	delete(f.rooms, playerID)
}

func (f *fakeGame) RoomOf(playerID string) (string, bool) {
	id, ok := f.rooms[playerID]
	return id, ok
}

func (f *fakeGame) StartGame(_ context.Context, roomID, playerID string) error {
	f.record("StartGame", roomID, playerID)
	return nil
}

func (f *fakeGame) ResetGame(roomID, playerID string) error {
	f.record("ResetGame", roomID, playerID)
	return nil
}

func (f *fakeGame) Move(roomID, playerID string, pos models.Position) error {
	f.record("Move", roomID, playerID)
	f.lastMove = pos
	return nil
}

func (f *fakeGame) CallMeeting(roomID, callerID string) error {
	f.record("CallMeeting", roomID, callerID)
	return nil
}

func (f *fakeGame) CastVote(roomID, voterID, targetID string) error {
	f.record("CastVote", roomID, voterID, targetID)
	return f.voteErr
}

func (f *fakeGame) MeetingChat(roomID, playerID, text string) error {
	f.record("MeetingChat", roomID, playerID, text)
	return nil
}

func (f *fakeGame) Interact(roomID, playerID, stationID string) error {
	f.record("Interact", roomID, playerID, stationID)
	return nil
}

func (f *fakeGame) Complete(roomID, playerID, stationID string) error {
	f.record("Complete", roomID, playerID, stationID)
	return nil
}

func (f *fakeGame) Sabotage(roomID, playerID, stationID string) error {
	f.record("Sabotage", roomID, playerID, stationID)
	return nil
}

func (f *fakeGame) SubmitDuel(_ context.Context, roomID, playerID, code string) error {
	f.record("SubmitDuel", roomID, playerID, code)
	return nil
}

func (f *fakeGame) RecordAttempt(roomID, playerID, stationID, code string, passed bool, output string) error {
	p := "false"
	if passed {
		p = "true"
	}
	f.record("RecordAttempt", roomID, playerID, stationID, code, p, output)
	return nil
}

type fakeBinder struct {
	bound map[string]string
}

func (b *fakeBinder) Bind(playerID, roomID string) { b.bound[playerID] = roomID }
func (b *fakeBinder) Unbind(playerID string)       { delete(b.bound, playerID) }

type fakeReplier struct {
	sent []*events.Event
}

func (r *fakeReplier) SendToPlayer(_, _ string, event *events.Event) {
	r.sent = append(r.sent, event)
}

func (r *fakeReplier) lastError(t *testing.T) string {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatal("expected an error event, got none")
	}
	ev := r.sent[len(r.sent)-1]
	if ev.Type != events.EventTypeError {
		t.Fatalf("expected error event, got %s", ev.Type)
	}
	var p events.ErrorPayload
	if err := ev.Decode(&p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return p.Message
}

func newTestRouter() (*Router, *fakeGame, *fakeBinder, *fakeReplier) {
	game := newFakeGame()
	binder := &fakeBinder{bound: make(map[string]string)}
	replier := &fakeReplier{}
	return NewRouter(game, binder, replier), game, binder, replier
}

func TestRouterCreateRoomBindsConnection(t *testing.T) {
	rt, game, binder, replier := newTestRouter()

	rt.HandleMessage(context.Background(), "p1", []byte(`{"type":"create-room","data":{"name":"Ada","avatar":"cat"}}`))

	c := game.lastCall()
	if c.method != "CreateRoom" || c.args[1] != "Ada" || c.args[2] != "cat" {
		t.Fatalf("unexpected call: %+v", c)
	}
	if binder.bound["p1"] != "ROOM01" {
		t.Fatalf("expected p1 bound to ROOM01, got %q", binder.bound["p1"])
	}
	if len(replier.sent) != 0 {
		t.Fatalf("expected no error replies, got %d", len(replier.sent))
	}
}

func TestRouterJoinFailureUnbinds(t *testing.T) {
	rt, game, binder, replier := newTestRouter()
	game.joinErr = &orchestrator.ActionError{Kind: orchestrator.ErrValidation, Reason: "room is full"}

	rt.HandleMessage(context.Background(), "p2", []byte(`{"type":"join-room","data":{"room_id":"ROOM01","name":"Bob"}}`))

	if _, ok := binder.bound["p2"]; ok {
		t.Fatal("expected p2 to be unbound after a failed join")
	}
	if got := replier.lastError(t); got != "room is full" {
		t.Fatalf("expected reason %q, got %q", "room is full", got)
	}
}

func TestRouterJoinSuccessKeepsBinding(t *testing.T) {
	rt, _, binder, replier := newTestRouter()

	rt.HandleMessage(context.Background(), "p2", []byte(`{"type":"join-room","data":{"room_id":"ROOM01","name":"Bob"}}`))

	if binder.bound["p2"] != "ROOM01" {
		t.Fatalf("expected p2 bound to ROOM01, got %q", binder.bound["p2"])
	}
	if len(replier.sent) != 0 {
		t.Fatalf("expected no replies, got %d", len(replier.sent))
	}
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom(string, *events.Event)      {}
func (nopBroadcaster) SendToPlayer(string, string, *events.Event) {}

func TestRouterJoinBindsCanonicalRoomCode(t *testing.T) {
	o := orchestrator.NewOrchestrator(orchestrator.DefaultConfig(), store.NewMemory(), nopBroadcaster{}, nil, nil, clockwork.NewFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	t.Cleanup(func() {
		cancel()
		o.Shutdown()
	})

	binder := &fakeBinder{bound: make(map[string]string)}
	replier := &fakeReplier{}
	rt := NewRouter(o, binder, replier)

	code, err := o.CreateRoom("p1", "Ada", "cat")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	msg := `{"type":"join-room","data":{"room_id":"  ` + strings.ToLower(code) + ` ","name":"Bob"}}`
	rt.HandleMessage(context.Background(), "p2", []byte(msg))

	if len(replier.sent) != 0 {
		t.Fatalf("expected no replies, got %d", len(replier.sent))
	}
	if got, ok := o.RoomOf("p2"); !ok || got != code {
		t.Fatalf("expected p2 in room %s, got %q", code, got)
	}
	if binder.bound["p2"] != code {
		t.Fatalf("expected p2 bound to %s, got %q", code, binder.bound["p2"])
	}
}

func TestRouterResolvesRoomFromSender(t *testing.T) {
	rt, game, _, _ := newTestRouter()
	game.rooms["p1"] = "ROOM01"

	tests := []struct {
		message string
		method  string
		args    []string
	}{
		{`{"type":"start-game"}`, "StartGame", []string{"p1"}},
		{`{"type":"reset-game"}`, "ResetGame", []string{"p1"}},
		{`{"type":"call-meeting"}`, "CallMeeting", []string{"p1"}},
		{`{"type":"cast-vote","data":{"target_id":"skip"}}`, "CastVote", []string{"p1", "skip"}},
		{`{"type":"meeting-chat","data":{"text":"it was p3"}}`, "MeetingChat", []string{"p1", "it was p3"}},
		{`{"type":"station-interact","data":{"station_id":"terminal"}}`, "Interact", []string{"p1", "terminal"}},
		{`{"type":"station-complete","data":{"station_id":"router"}}`, "Complete", []string{"p1", "router"}},
		{`{"type":"trigger-sabotage","data":{"station_id":"database"}}`, "Sabotage", []string{"p1", "database"}},
		{`{"type":"submit-duel-code","data":{"code":"print(42)"}}`, "SubmitDuel", []string{"p1", "print(42)"}},
		{`{"type":"record-attempt","data":{"station_id":"compiler","code":"x","passed":true,"output":"ok"}}`, "RecordAttempt", []string{"p1", "compiler", "x", "true", "ok"}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rt.HandleMessage(context.Background(), "p1", []byte(tt.message))

			c := game.lastCall()
			if c.method != tt.method {
				t.Fatalf("expected %s, got %s", tt.method, c.method)
			}
			if c.roomID != "ROOM01" {
				t.Fatalf("expected room ROOM01, got %q", c.roomID)
			}
			if strings.Join(c.args, "|") != strings.Join(tt.args, "|") {
				t.Fatalf("expected args %v, got %v", tt.args, c.args)
			}
		})
	}
}

func TestRouterMoveDecodesPosition(t *testing.T) {
	rt, game, _, _ := newTestRouter()
	game.rooms["p1"] = "ROOM01"

	rt.HandleMessage(context.Background(), "p1", []byte(`{"type":"move","data":{"position":{"x":12.5,"y":-3}}}`))

	if game.lastMove.X != 12.5 || game.lastMove.Y != -3 {
		t.Fatalf("unexpected position: %+v", game.lastMove)
	}
}

func TestRouterRejections(t *testing.T) {
	tests := []struct {
		name    string
		inRoom  bool
		message string
		want    string
	}{
		{"malformed json", true, `{"type":`, "invalid message"},
		{"missing type", true, `{"data":{}}`, "invalid message"},
		{"bad payload", true, `{"type":"cast-vote","data":"nope"}`, "invalid message"},
		{"unknown type", true, `{"type":"teleport"}`, "unknown message type"},
		{"unknown type outside room", false, `{"type":"teleport"}`, "unknown message type"},
		{"not in room", false, `{"type":"call-meeting"}`, "you are not in a room"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, game, _, replier := newTestRouter()
			if tt.inRoom {
				game.rooms["p1"] = "ROOM01"
			}

			rt.HandleMessage(context.Background(), "p1", []byte(tt.message))

			if got := replier.lastError(t); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRouterHidesInternalErrors(t *testing.T) {
	rt, game, _, replier := newTestRouter()
	game.rooms["p1"] = "ROOM01"
	game.voteErr = errors.New("connection reset by peer")

	rt.HandleMessage(context.Background(), "p1", []byte(`{"type":"cast-vote","data":{"target_id":"p2"}}`))

	if got := replier.lastError(t); got != "something went wrong" {
		t.Fatalf("expected generic reason, got %q", got)
	}
}

func TestRouterDisconnectLeavesRoom(t *testing.T) {
	rt, game, _, _ := newTestRouter()
	game.rooms["p1"] = "ROOM01"

	rt.HandleDisconnect("p1")

	if len(game.left) != 1 || game.left[0] != "p1" {
		t.Fatalf("expected p1 to leave, got %v", game.left)
	}
}
