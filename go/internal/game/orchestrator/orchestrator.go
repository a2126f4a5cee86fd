// Package orchestrator owns the authoritative state of every live room:
// lobby membership, the round/meeting/duel clocks, votes, task stations,
// sabotage and win evaluation.
//
// Each room is guarded by its own mutex. Handlers hold it only while
// reading or mutating room state; calls to the task generator or judge
// happen without it, and the handler re-validates the room afterwards.
package orchestrator

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/clients/judge_client"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/sabotage"
	"github.com/mcdev12/sabotage/go/internal/game/timer"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/mcdev12/sabotage/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Judge defines what the orchestrator needs from the code-execution judge.
type Judge interface {
	Evaluate(ctx context.Context, sub judge_client.Submission) (judge_client.Verdict, error)
}

// Generator defines what the orchestrator needs from the text-generation service.
type Generator interface {
	GenerateTask(ctx context.Context, req generator_client.TaskRequest) (generator_client.GeneratedTask, error)
	GeneratePuzzle(ctx context.Context, req generator_client.TaskRequest) (generator_client.GeneratedTask, error)
	GenerateReport(ctx context.Context, req generator_client.ReportRequest) (string, error)
}

// Session is the in-memory state of one game.
type Session struct {
	Assignments map[string][]models.Task
	// Completed is keyed by completionKey and reset every round.
	Completed       map[string]bool
	WorkerCompleted int
	Target          int
	SaboteurID      string
	Attempts        map[string][]models.Attempt
	Round           int
	Scores          map[string]int
}

// Duel is a running tie-break between the players tied at the top of a vote.
type Duel struct {
	ID      string
	Tied    []string
	Puzzle  models.Task
	Ready   bool
	Results map[string]string
}

// Per-player duel results.
const (
	duelPending = "pending"
	duelWrong   = "wrong"
	duelWon     = "won"
	duelLost    = "lost"
)

func completionKey(playerID, stationID string) string {
	return playerID + ":" + stationID
}

type roomState struct {
	mu sync.Mutex

	room    *models.Room
	players map[string]*models.Player
	order   []string

	session *Session
	duel    *Duel

	// preparing is set while tasks are generated for a new game or round;
	// gameplay actions are refused until it clears.
	preparing bool
	// roundExpired is set when the round clock ran out while a meeting or
	// duel held the room; the round ends once that resolves.
	roundExpired bool
	// epoch changes whenever a game starts, ends or resets, invalidating
	// callbacks and async work scheduled for the previous one.
	epoch      int
	meetingSeq int
	breakTimer clockwork.Timer
	closed     bool
}

// playerList returns players in join order.
func (r *roomState) playerList() []*models.Player {
	out := make([]*models.Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *roomState) player(playerID string) (*models.Player, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, notFound(reasonPlayerNotFound)
	}
	return p, nil
}

func (r *roomState) playable() bool {
	return r.room.GameActive && !r.preparing && r.session != nil
}

func (r *roomState) stopBreakTimer() {
	if r.breakTimer != nil {
		r.breakTimer.Stop()
		r.breakTimer = nil
	}
}

// Orchestrator drives every live room.
type Orchestrator struct {
	cfg         Config
	persister   *Persister
	store       store.Store
	broadcaster events.Broadcaster
	judge       Judge
	generator   Generator
	clock       clockwork.Clock

	roundTimer   *timer.Controller
	meetingTimer *timer.Controller
	duelTimer    *timer.Controller
	sweeper      *sabotage.Sweeper

	// chooseSaboteur picks an index into the joined players.
	chooseSaboteur func(n int) int

	mu          sync.RWMutex
	rooms       map[string]*roomState
	playerRooms map[string]string
}

// NewOrchestrator wires an orchestrator. judge and generator may be nil,
// in which case the local fallbacks are always used.
func NewOrchestrator(cfg Config, st store.Store, broadcaster events.Broadcaster, judge Judge, generator Generator, clock clockwork.Clock) *Orchestrator {
	cfg = cfg.withDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	o := &Orchestrator{
		cfg:            cfg,
		persister:      NewPersister(st, cfg.PersistWorkers),
		store:          st,
		broadcaster:    broadcaster,
		judge:          judge,
		generator:      generator,
		clock:          clock,
		chooseSaboteur: rand.IntN,
		rooms:          make(map[string]*roomState),
		playerRooms:    make(map[string]string),
	}

	o.roundTimer = timer.NewController(timer.Config{
		Name:         "round",
		EventType:    events.EventTypeTimerUpdate,
		DefaultTicks: cfg.RoundSeconds,
		Interval:     time.Second,
	}, clock, broadcaster, o.persister)
	o.roundTimer.SetDefaultCallback(o.onRoundTimerZeroCurrent)

	o.meetingTimer = timer.NewController(timer.Config{
		Name:         "meeting",
		EventType:    events.EventTypeMeetingTimerSync,
		DefaultTicks: cfg.MeetingSeconds,
		Interval:     time.Second,
	}, clock, broadcaster, nil)

	o.duelTimer = timer.NewController(timer.Config{
		Name:         "duel",
		EventType:    events.EventTypeDuelTimerUpdate,
		DefaultTicks: cfg.DuelSeconds,
		Interval:     time.Second,
	}, clock, broadcaster, nil)

	o.sweeper = sabotage.NewSweeper(clock, cfg.sweepInterval(), o.sweepRoom)
	return o
}

// Start runs the persistence workers until ctx is cancelled, then stops
// every timer.
func (o *Orchestrator) Start(ctx context.Context) {
	o.persister.Start(ctx)
	go func() {
		<-ctx.Done()
		o.Shutdown()
	}()
}

// Shutdown cancels all room timers and sweeps.
func (o *Orchestrator) Shutdown() {
	o.roundTimer.StopAll()
	o.meetingTimer.StopAll()
	o.duelTimer.StopAll()
	o.sweeper.StopAll()

	o.mu.RLock()
	rooms := make([]*roomState, 0, len(o.rooms))
	for _, r := range o.rooms {
		rooms = append(rooms, r)
	}
	o.mu.RUnlock()
	for _, r := range rooms {
		r.mu.Lock()
		r.stopBreakTimer()
		r.mu.Unlock()
	}
	log.Info().Int("rooms", len(rooms)).Msg("orchestrator timers stopped")
}

// Wait blocks until queued store writes have been flushed after Start's
// context is cancelled.
func (o *Orchestrator) Wait() {
	o.persister.Wait()
}

// lockRoom returns the room with its mutex held. The caller must unlock.
func (o *Orchestrator) lockRoom(roomID string) (*roomState, error) {
	o.mu.RLock()
	r, ok := o.rooms[roomID]
	o.mu.RUnlock()
	if !ok {
		return nil, notFound(reasonRoomNotFound)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, notFound(reasonRoomNotFound)
	}
	return r, nil
}

// RoomOf returns the room a player is in.
func (o *Orchestrator) RoomOf(playerID string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	id, ok := o.playerRooms[playerID]
	return id, ok
}

func (o *Orchestrator) broadcast(roomID string, eventType events.EventType, payload any) {
	if o.broadcaster == nil {
		return
	}
	o.broadcaster.BroadcastToRoom(roomID, events.New(eventType, roomID, payload))
}

func (o *Orchestrator) sendTo(roomID, playerID string, eventType events.EventType, payload any) {
	if o.broadcaster == nil {
		return
	}
	o.broadcaster.SendToPlayer(roomID, playerID, events.New(eventType, roomID, payload))
}

func (o *Orchestrator) persistRoom(r *roomState) {
	o.persister.SaveRoom(r.room)
}

func (o *Orchestrator) persistPlayers(r *roomState) {
	for _, p := range r.playerList() {
		o.persister.SavePlayer(p)
	}
}

// Views

func publicView(p *models.Player, revealRole bool) events.PlayerView {
	v := events.PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		Avatar:   p.Avatar,
		Alive:    p.Alive,
		Position: p.Position,
	}
	if revealRole {
		v.Role = p.Role
	}
	return v
}

// publicPlayers lists players with roles shown only when the game is not running.
func (r *roomState) publicPlayers() []events.PlayerView {
	reveal := !r.room.GameActive
	out := make([]events.PlayerView, 0, len(r.order))
	for _, p := range r.playerList() {
		out = append(out, publicView(p, reveal && p.Role != models.RoleUnassigned))
	}
	return out
}

func (r *roomState) leaderboard() []events.LeaderboardEntry {
	players := r.playerList()
	scores := map[string]int{}
	if r.session != nil {
		scores = r.session.Scores
	}

	sort.SliceStable(players, func(i, j int) bool {
		si, sj := scores[players[i].ID], scores[players[j].ID]
		if si != sj {
			return si > sj
		}
		return players[i].Name < players[j].Name
	})

	out := make([]events.LeaderboardEntry, 0, len(players))
	for i, p := range players {
		out = append(out, events.LeaderboardEntry{
			Position: i + 1,
			PlayerID: p.ID,
			Name:     p.Name,
			Score:    scores[p.ID],
			Alive:    p.Alive,
		})
	}
	return out
}

func (r *roomState) scoreboard() map[string]int {
	out := make(map[string]int, len(r.players))
	for id := range r.players {
		out[id] = 0
	}
	if r.session != nil {
		for id, s := range r.session.Scores {
			if _, ok := out[id]; ok {
				out[id] = s
			}
		}
	}
	return out
}

func (o *Orchestrator) knownStation(stationID string) bool {
	for _, s := range o.cfg.Stations {
		if s == stationID {
			return true
		}
	}
	return false
}
