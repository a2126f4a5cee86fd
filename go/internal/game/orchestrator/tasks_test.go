package orchestrator

import (
	"testing"
	"time"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/models"
)

func TestCompletionIsIdempotent(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 4)
	room := g.roomID

	st := g.stationsOf(t, "p2")[0]
	must(t, g.o.Complete(room, "p2", st))
	must(t, g.o.Complete(room, "p2", st))

	g.withRoom(t, func(r *roomState) {
		if r.session.WorkerCompleted != 1 {
			t.Fatalf("expected 1 completion, got %d", r.session.WorkerCompleted)
		}
		if r.players["p2"].TasksCompleted != 1 {
			t.Fatalf("expected personal count 1, got %d", r.players["p2"].TasksCompleted)
		}
		if r.session.Scores["p2"] != g.o.cfg.TaskScore {
			t.Fatalf("expected score %d, got %d", g.o.cfg.TaskScore, r.session.Scores["p2"])
		}
	})

	expectReason(t, g.o.Complete(room, "p2", g.unassignedStation(t, "p2")), ErrValidation, reasonNotAssigned)
	expectReason(t, g.o.Complete(room, "p2", "moon-base"), ErrNotFound, reasonStationNotFound)
}

func TestSaboteurCompletionEarnsPointsNotProgress(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 4)
	room := g.roomID

	st := g.stationsOf(t, "p1")[0]
	must(t, g.o.Complete(room, "p1", st))

	g.withRoom(t, func(r *roomState) {
		if r.session.WorkerCompleted != 0 {
			t.Fatalf("saboteur must not advance progress, got %d", r.session.WorkerCompleted)
		}
		if r.session.Scores["p1"] != g.o.cfg.TaskScore {
			t.Fatalf("expected cosmetic score, got %d", r.session.Scores["p1"])
		}
		want := g.o.cfg.StartingSabotagePoints + g.o.cfg.SabotagePointsPerTask
		if r.players["p1"].SabotagePoints != want {
			t.Fatalf("expected %d points, got %d", want, r.players["p1"].SabotagePoints)
		}
	})

	var private events.ScoreUpdatePayload
	g.events.last(t, events.EventTypeScoreUpdate, "p1", &private)
	if private.SabotagePoints == nil {
		t.Fatal("expected private sabotage balance")
	}
	var public events.ScoreUpdatePayload
	g.events.last(t, events.EventTypeScoreUpdate, "", &public)
	if public.SabotagePoints != nil {
		t.Fatal("room score update must not carry the saboteur balance")
	}
}

func TestWorkersWinOnTarget(t *testing.T) {
	g := newTestGame(t, nil, func(c *Config) { c.TasksPerPlayer = 1 })
	g.start(t, 3)
	room := g.roomID

	must(t, g.o.Complete(room, "p2", g.stationsOf(t, "p2")[0]))
	must(t, g.o.Complete(room, "p3", g.stationsOf(t, "p3")[0]))

	var over events.GameOverPayload
	g.events.last(t, events.EventTypeGameOver, "", &over)
	if over.Winner != models.RoleWorker {
		t.Fatalf("expected worker victory, got %s", over.Winner)
	}
	expectReason(t, g.o.Complete(room, "p2", g.o.cfg.Stations[0]), ErrValidation, reasonGameNotActive)
}

func TestSabotageFreezesWorkersAndExpires(t *testing.T) {
	g := newTestGame(t, nil, func(c *Config) {
		c.StartingSabotagePoints = 2
		c.SabotageSeconds = 2
		c.FreezeSeconds = 2
	})
	g.start(t, 4)
	room := g.roomID
	station := g.o.cfg.Stations[0]

	expectReason(t, g.o.Sabotage(room, "p2", station), ErrValidation, reasonNotSaboteur)
	must(t, g.o.Sabotage(room, "p1", station))
	expectReason(t, g.o.Sabotage(room, "p1", station), ErrValidation, reasonAlreadySabotaged)

	var sab events.StationSabotagedPayload
	g.events.last(t, events.EventTypeStationSabotaged, "", &sab)
	if sab.StationID != station {
		t.Fatalf("expected %s sabotaged, got %s", station, sab.StationID)
	}

	must(t, g.o.Interact(room, "p1", station))
	g.events.waitN(t, events.EventTypeTaskAccessGranted, "p1", 1)

	must(t, g.o.Interact(room, "p2", station))
	var blocked events.TaskAccessBlockedPayload
	g.events.last(t, events.EventTypeTaskAccessBlocked, "p2", &blocked)
	if !blocked.TimeoutUntil.Equal(g.clock.Now().Add(2 * time.Second)) {
		t.Fatalf("unexpected freeze deadline %v", blocked.TimeoutUntil)
	}
	expectReason(t, g.o.Move(room, "p2", models.Position{X: 3, Y: 4}), ErrValidation, reasonFrozen)
	expectReason(t, g.o.Interact(room, "p2", g.o.cfg.Stations[1]), ErrValidation, reasonFrozen)

	must(t, g.o.Sabotage(room, "p1", g.o.cfg.Stations[1]))
	expectReason(t, g.o.Sabotage(room, "p1", g.o.cfg.Stations[2]), ErrValidation, reasonNoPoints)
	if !g.o.sweeper.Running(room) {
		t.Fatal("expected sweep running while stations are sabotaged")
	}

	// Round ticker and sweeper both run on one-second intervals.
	for i := 0; i < 6 && len(g.events.find(events.EventTypeSabotageCleared, "")) < 2; i++ {
		before := len(g.events.find(events.EventTypeTimerUpdate, ""))
		g.clock.Advance(time.Second)
		g.events.waitN(t, events.EventTypeTimerUpdate, "", before+1)
		time.Sleep(10 * time.Millisecond)
	}

	cleared := g.events.waitN(t, events.EventTypeSabotageCleared, "", 2)
	if len(cleared) != 2 {
		t.Fatalf("expected two stations cleared, got %d", len(cleared))
	}
	g.withRoom(t, func(r *roomState) {
		if len(r.room.SabotageStations) != 0 {
			t.Fatalf("expected no entries left, got %v", r.room.SabotageStations)
		}
	})

	deadline := time.Now().Add(time.Second)
	for g.o.sweeper.Running(room) {
		if time.Now().After(deadline) {
			t.Fatal("expected sweep to stop with no entries left")
		}
		time.Sleep(2 * time.Millisecond)
	}

	// The freeze has lapsed too.
	must(t, g.o.Move(room, "p2", models.Position{X: 3, Y: 4}))
}

func TestDeadPlayersCannotUseStations(t *testing.T) {
	g := newTestGame(t, nil, nil)
	g.start(t, 4)
	room := g.roomID
	st := g.stationsOf(t, "p2")[0]

	g.withRoom(t, func(r *roomState) { r.players["p2"].Alive = false })
	expectReason(t, g.o.Interact(room, "p2", st), ErrValidation, reasonDead)
	expectReason(t, g.o.Complete(room, "p2", st), ErrValidation, reasonDead)

	must(t, g.o.CallMeeting(room, "p3"))
	expectReason(t, g.o.Interact(room, "p3", st), ErrValidation, reasonMeetingActive)
	expectReason(t, g.o.Sabotage(room, "p1", st), ErrValidation, reasonMeetingActive)
}
