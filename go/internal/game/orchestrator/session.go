package orchestrator

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/rules"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxParallelGeneration = 8

// taskPlan is the station/topic layout for one player before content is
// generated.
type taskPlan struct {
	playerID string
	slots    []taskSlot
}

type taskSlot struct {
	stationID string
	topic     string
}

func (o *Orchestrator) tasksPerPlayer() int {
	n := o.cfg.TasksPerPlayer
	if n > len(o.cfg.Stations) {
		n = len(o.cfg.Stations)
	}
	return n
}

// planTasks gives every player distinct random stations with random topics.
func (o *Orchestrator) planTasks(players []*models.Player) []taskPlan {
	perPlayer := o.tasksPerPlayer()
	plans := make([]taskPlan, 0, len(players))
	for _, p := range players {
		stations := append([]string(nil), o.cfg.Stations...)
		rand.Shuffle(len(stations), func(i, j int) { stations[i], stations[j] = stations[j], stations[i] })

		plan := taskPlan{playerID: p.ID}
		for _, s := range stations[:perPlayer] {
			plan.slots = append(plan.slots, taskSlot{
				stationID: s,
				topic:     o.cfg.Topics[rand.IntN(len(o.cfg.Topics))],
			})
		}
		plans = append(plans, plan)
	}
	return plans
}

// generateTasks fills every plan in parallel. Failed generations fall back
// to canned tasks, so the result always covers every slot.
func (o *Orchestrator) generateTasks(ctx context.Context, roomID string, plans []taskPlan) map[string][]models.Task {
	var mu sync.Mutex
	out := make(map[string][]models.Task, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGeneration)

	for _, plan := range plans {
		g.Go(func() error {
			tasks := make([]models.Task, 0, len(plan.slots))
			for _, slot := range plan.slots {
				generated := o.requestTask(gctx, roomID, slot.topic)
				tasks = append(tasks, models.Task{
					ID:             uuid.New().String(),
					StationID:      slot.stationID,
					Topic:          slot.topic,
					Language:       o.cfg.Language,
					Prompt:         generated.Prompt,
					StarterCode:    generated.StarterCode,
					ExpectedOutput: generated.ExpectedOutput,
				})
			}
			mu.Lock()
			out[plan.playerID] = tasks
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) requestTask(ctx context.Context, roomID, topic string) generator_client.GeneratedTask {
	if o.generator == nil {
		return fallbackTask(topic)
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.externalTimeout())
	defer cancel()

	t, err := o.generator.GenerateTask(ctx, generator_client.TaskRequest{Topic: topic, Language: o.cfg.Language})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("topic", topic).Msg("task generation failed, using canned task")
		return fallbackTask(topic)
	}
	return t
}

// StartGame designates a saboteur, generates every player's tasks and
// starts round one.
func (o *Orchestrator) StartGame(ctx context.Context, roomID, playerID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}

	if _, err := r.player(playerID); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.room.GameActive || r.preparing {
		r.mu.Unlock()
		return invalid(reasonGameInProgress)
	}
	if len(r.players) < o.cfg.MinPlayers {
		r.mu.Unlock()
		return invalid(reasonNotEnoughPlayers)
	}

	r.preparing = true
	r.epoch++
	epoch := r.epoch

	players := r.playerList()
	saboteur := players[o.chooseSaboteur(len(players))]
	for _, p := range players {
		resetPlayer(p)
		p.Role = models.RoleWorker
	}
	saboteur.Role = models.RoleSaboteur
	saboteur.SabotagePoints = o.cfg.StartingSabotagePoints
	plans := o.planTasks(players)
	r.mu.Unlock()

	log.Info().Str("room_id", roomID).Int("players", len(players)).Msg("starting game, generating tasks")
	assignments := o.generateTasks(ctx, roomID, plans)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.epoch != epoch {
		log.Info().Str("room_id", roomID).Msg("game start abandoned, room changed while generating tasks")
		return nil
	}
	if _, ok := r.players[saboteur.ID]; !ok || len(r.players) < o.cfg.MinPlayers {
		r.preparing = false
		for _, p := range r.playerList() {
			resetPlayer(p)
		}
		return invalid(reasonNotEnoughPlayers)
	}

	workers := 0
	for _, p := range r.playerList() {
		if p.Role == models.RoleWorker {
			workers++
		}
	}

	session := &Session{
		Assignments: make(map[string][]models.Task, len(r.players)),
		Completed:   make(map[string]bool),
		Target:      workers * o.tasksPerPlayer(),
		SaboteurID:  saboteur.ID,
		Attempts:    make(map[string][]models.Attempt),
		Round:       1,
		Scores:      make(map[string]int, len(r.players)),
	}
	for id := range r.players {
		session.Assignments[id] = assignments[id]
		session.Scores[id] = 0
	}

	r.session = session
	r.duel = nil
	r.preparing = false
	r.roundExpired = false
	r.room.GameActive = true
	r.room.MeetingActive = false
	r.room.Round = 1
	r.room.Timer = o.cfg.RoundSeconds
	r.room.SabotageStations = make(map[string]models.SabotageStationEntry)

	o.persistRoom(r)
	o.persistPlayers(r)

	o.broadcast(roomID, events.EventTypeGameStarted, events.GameStartedPayload{
		Round:        1,
		MaxRounds:    o.cfg.MaxRounds,
		RoundSeconds: o.cfg.RoundSeconds,
		TaskTarget:   session.Target,
		Players:      r.publicPlayers(),
	})
	o.sendAssignmentsLocked(r)
	o.beginRoundLocked(r, epoch, 1)

	log.Info().
		Str("room_id", roomID).
		Int("target", session.Target).
		Int("round", 1).
		Msg("game started")
	return nil
}

// sendAssignmentsLocked delivers each player only their own tasks.
func (o *Orchestrator) sendAssignmentsLocked(r *roomState) {
	for _, p := range r.playerList() {
		tasks := r.session.Assignments[p.ID]
		views := make([]events.TaskView, 0, len(tasks))
		for _, t := range tasks {
			views = append(views, events.NewTaskView(t))
		}
		payload := events.TasksAssignedPayload{
			Round: r.session.Round,
			Role:  p.Role,
			Tasks: views,
		}
		if p.Role == models.RoleSaboteur {
			payload.SabotagePoints = p.SabotagePoints
		}
		o.sendTo(r.room.ID, p.ID, events.EventTypeTasksAssigned, payload)
	}
}

func (o *Orchestrator) beginRoundLocked(r *roomState, epoch, round int) {
	roomID := r.room.ID
	r.roundExpired = false
	o.broadcast(roomID, events.EventTypeRoundStart, events.RoundStartPayload{Round: round, RoundSeconds: o.cfg.RoundSeconds})
	o.roundTimer.Start(roomID, o.cfg.RoundSeconds, func(id string) {
		o.onRoundTimerZero(id, epoch, round)
	})
}

// onRoundTimerZeroCurrent handles a round timer resumed without a snapshot.
func (o *Orchestrator) onRoundTimerZeroCurrent(roomID string) {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	epoch, round := r.epoch, r.room.Round
	r.mu.Unlock()
	o.onRoundTimerZero(roomID, epoch, round)
}

// onRoundTimerZero ends the round: leaderboard, then either game end at
// the round limit or preparation of the next round.
func (o *Orchestrator) onRoundTimerZero(roomID string, epoch, round int) {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	if r.epoch != epoch || r.room.Round != round || !r.playable() {
		return
	}
	if r.room.MeetingActive || r.duel != nil {
		log.Debug().Str("room_id", roomID).Int("round", round).Msg("round clock expired during meeting, deferring round end")
		r.roundExpired = true
		return
	}
	o.advanceRoundLocked(r)
}

// resumeRoundLocked continues the round after a meeting or duel, ending it
// instead if its clock ran out in the meantime.
func (o *Orchestrator) resumeRoundLocked(r *roomState) {
	if r.roundExpired {
		r.roundExpired = false
		o.advanceRoundLocked(r)
		return
	}
	o.roundTimer.Resume(r.room.ID)
}

func (o *Orchestrator) advanceRoundLocked(r *roomState) {
	roomID, epoch, round := r.room.ID, r.epoch, r.room.Round
	o.roundTimer.Stop(roomID)
	if o.checkWinLocked(r) {
		return
	}

	o.broadcast(roomID, events.EventTypeRoundEnd, events.RoundEndPayload{
		Round:       round,
		MaxRounds:   o.cfg.MaxRounds,
		Leaderboard: r.leaderboard(),
	})

	if round >= o.cfg.MaxRounds {
		o.endGameLocked(r, rules.OutcomeWorkers, rules.ReasonRoundsExhausted)
		return
	}

	next := round + 1
	r.preparing = true
	r.room.Round = next
	r.room.Timer = o.cfg.RoundSeconds
	r.session.Round = next
	r.session.Completed = make(map[string]bool)
	r.session.WorkerCompleted = 0
	o.persistRoom(r)

	plans := o.planTasks(r.playerList())
	log.Info().Str("room_id", roomID).Int("round", next).Msg("round ended, preparing next round")

	go o.prepareRound(roomID, epoch, next, plans)
}

// prepareRound generates the next round's tasks and schedules its start
// after the round break.
func (o *Orchestrator) prepareRound(roomID string, epoch, round int, plans []taskPlan) {
	assignments := o.generateTasks(context.Background(), roomID, plans)

	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	if r.epoch != epoch || r.room.Round != round || r.session == nil || !r.room.GameActive {
		return
	}

	r.session.Assignments = make(map[string][]models.Task, len(r.players))
	for id := range r.players {
		r.session.Assignments[id] = assignments[id]
	}
	o.sendAssignmentsLocked(r)

	start := func() {
		r, err := o.lockRoom(roomID)
		if err != nil {
			return
		}
		defer r.mu.Unlock()
		if r.epoch != epoch || r.room.Round != round || r.session == nil || !r.room.GameActive {
			return
		}
		r.breakTimer = nil
		r.preparing = false
		o.beginRoundLocked(r, epoch, round)
	}

	r.stopBreakTimer()
	brk := o.cfg.roundBreak()
	if brk <= 0 {
		r.preparing = false
		o.beginRoundLocked(r, epoch, round)
		return
	}
	r.breakTimer = o.clock.AfterFunc(brk, start)
	log.Debug().Str("room_id", roomID).Int("round", round).Dur("break", brk).Msg("round break scheduled")
}
