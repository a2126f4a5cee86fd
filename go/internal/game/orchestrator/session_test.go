package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/rules"
	"github.com/mcdev12/sabotage/go/internal/models"
)

func TestLobbyJoinRules(t *testing.T) {
	g := newTestGame(t, nil, func(c *Config) { c.MaxPlayers = 3 })
	g.lobby(t, 3)
	room := g.roomID

	if len(room) != roomCodeLength {
		t.Fatalf("expected %d-char room code, got %q", roomCodeLength, room)
	}
	expectReason(t, g.o.JoinRoom(room, "p9", "Late", ""), ErrValidation, reasonRoomFull)
	expectReason(t, g.o.JoinRoom("ZZZZZZ", "p9", "Late", ""), ErrNotFound, reasonRoomNotFound)
	expectReason(t, g.o.JoinRoom(room, "p9", "  ", ""), ErrValidation, reasonNameRequired)
	if _, err := g.o.CreateRoom("p2", "Again", ""); err == nil {
		t.Fatal("expected a seated player to be refused a second room")
	}

	var joined events.RoomJoinedPayload
	g.events.last(t, events.EventTypeRoomJoined, "p3", &joined)
	if joined.RoomID != room || len(joined.Players) != 3 {
		t.Fatalf("unexpected join payload %+v", joined)
	}

	must(t, g.o.StartGame(context.Background(), room, "p2"))
	g.o.Leave("p3")
	expectReason(t, g.o.JoinRoom(room, "p9", "Late", ""), ErrValidation, reasonGameInProgress)
	expectReason(t, g.o.StartGame(context.Background(), room, "p1"), ErrValidation, reasonGameInProgress)
}

func TestStartNeedsMinimumPlayers(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.lobby(t, 2)
	expectReason(t, g.o.StartGame(context.Background(), g.roomID, "p1"), ErrValidation, reasonNotEnoughPlayers)
}

func TestLastPlayerLeavingClosesRoom(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 3)
	room := g.roomID

	must(t, g.o.Sabotage(room, "p1", g.o.cfg.Stations[0]))
	for _, id := range g.players {
		g.o.Leave(id)
	}

	if _, ok := g.o.RoomOf("p1"); ok {
		t.Fatal("expected player mapping removed")
	}
	if g.o.roundTimer.Running(room) || g.o.sweeper.Running(room) {
		t.Fatal("expected every room schedule stopped on teardown")
	}
	expectReason(t, g.o.CallMeeting(room, "p1"), ErrNotFound, reasonRoomNotFound)
}

func TestResetReturnsToLobby(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 3)
	room := g.roomID

	must(t, g.o.CallMeeting(room, "p2"))
	must(t, g.o.ResetGame(room, "p3"))

	if g.o.roundTimer.Running(room) || g.o.meetingTimer.Running(room) {
		t.Fatal("expected clocks stopped by reset")
	}
	g.withRoom(t, func(r *roomState) {
		if r.room.GameActive || r.room.MeetingActive || r.session != nil {
			t.Fatal("expected lobby state")
		}
		for _, p := range r.players {
			if p.Role != models.RoleUnassigned || !p.Alive || p.Vote != "" {
				t.Fatalf("expected player reset, got %+v", p)
			}
		}
	})

	// A fresh game can start right away.
	must(t, g.o.StartGame(context.Background(), room, "p1"))
}

func TestRoomStateHidesRolesWhileActive(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 3)

	snap, err := g.o.RoomState(context.Background(), g.roomID)
	must(t, err)
	if !snap.Live || !snap.GameActive || snap.Round != 1 || snap.TimeRemaining != g.o.cfg.RoundSeconds {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	for _, p := range snap.Players {
		if p.Role != "" {
			t.Fatalf("role leaked for %s", p.ID)
		}
	}
}

func TestRoundsAdvanceThenWorkersWin(t *testing.T) {
	g := newTestGame(t, nil, func(c *Config) {
		c.RoundSeconds = 2
		c.MaxRounds = 2
		c.RoundBreakSeconds = 1
	})
	g.start(t, 3)
	room := g.roomID

	firstStation := g.stationsOf(t, "p2")[0]
	must(t, g.o.Complete(room, "p2", firstStation))

	g.tick(t, events.EventTypeTimerUpdate)
	g.tick(t, events.EventTypeTimerUpdate)

	var end events.RoundEndPayload
	g.events.last(t, events.EventTypeRoundEnd, "", &end)
	if end.Round != 1 || len(end.Leaderboard) != 3 || end.Leaderboard[0].PlayerID != "p2" {
		t.Fatalf("unexpected round end %+v", end)
	}

	// Round two tasks arrive before the break ends.
	g.events.waitN(t, events.EventTypeTasksAssigned, "p2", 2)
	g.withRoom(t, func(r *roomState) {
		if r.session.Round != 2 || r.session.WorkerCompleted != 0 || len(r.session.Completed) != 0 {
			t.Fatalf("expected fresh round state, got %+v", r.session)
		}
	})
	expectReason(t, g.o.CallMeeting(room, "p2"), ErrValidation, reasonGameNotActive)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("expected round break scheduled: %v", err)
	}
	g.clock.Advance(time.Second)

	starts := g.events.waitN(t, events.EventTypeRoundStart, "", 2)
	var rs events.RoundStartPayload
	if err := starts[1].Decode(&rs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rs.Round != 2 {
		t.Fatalf("expected round 2, got %d", rs.Round)
	}
	// The fresh countdown has broadcast its initial value.
	g.events.waitN(t, events.EventTypeTimerUpdate, "", 4)

	g.tick(t, events.EventTypeTimerUpdate)
	g.tick(t, events.EventTypeTimerUpdate)

	var over events.GameOverPayload
	g.events.last(t, events.EventTypeGameOver, "", &over)
	if over.Winner != models.RoleWorker || over.Reason != rules.ReasonRoundsExhausted {
		t.Fatalf("expected workers to survive every round, got %+v", over)
	}
}
