package orchestrator

import (
	"time"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/sabotage"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
)

func (r *roomState) assignedTask(playerID, stationID string) (models.Task, bool) {
	for _, t := range r.session.Assignments[playerID] {
		if t.StationID == stationID {
			return t, true
		}
	}
	return models.Task{}, false
}

// Interact opens a station. A worker hitting a sabotaged station is
// frozen and denied; the saboteur is never blocked.
func (o *Orchestrator) Interact(roomID, playerID, stationID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, err := r.player(playerID)
	if err != nil {
		return err
	}
	if !o.knownStation(stationID) {
		return notFound(reasonStationNotFound)
	}
	if !r.playable() {
		return invalid(reasonGameNotActive)
	}
	if r.room.MeetingActive {
		return invalid(reasonMeetingActive)
	}
	if !p.CanWork() {
		return invalid(reasonDead)
	}
	now := o.clock.Now()
	if p.Frozen(now) {
		return invalid(reasonFrozen)
	}

	if sabotage.IsSabotaged(r.room.SabotageStations, stationID, now) && p.Role != models.RoleSaboteur {
		until := now.Add(o.cfg.freeze())
		p.TimeoutUntil = &until
		o.persister.SavePlayer(p)
		o.sendTo(roomID, playerID, events.EventTypeTaskAccessBlocked, events.TaskAccessBlockedPayload{
			StationID:    stationID,
			Reason:       reasonStationSabotaged,
			TimeoutUntil: until,
		})
		log.Debug().Str("room_id", roomID).Str("player_id", playerID).Str("station_id", stationID).Msg("player frozen at sabotaged station")
		return nil
	}

	payload := events.TaskAccessGrantedPayload{StationID: stationID}
	if t, ok := r.assignedTask(playerID, stationID); ok {
		view := events.NewTaskView(t)
		payload.Task = &view
	}
	o.sendTo(roomID, playerID, events.EventTypeTaskAccessGranted, payload)
	return nil
}

// Complete marks the player's task at stationID done. Repeats are no-ops.
func (o *Orchestrator) Complete(roomID, playerID, stationID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, err := r.player(playerID)
	if err != nil {
		return err
	}
	if !o.knownStation(stationID) {
		return notFound(reasonStationNotFound)
	}
	if !r.playable() {
		return invalid(reasonGameNotActive)
	}
	if r.room.MeetingActive {
		return invalid(reasonMeetingActive)
	}
	if !p.CanWork() {
		return invalid(reasonDead)
	}
	now := o.clock.Now()
	if p.Frozen(now) {
		return invalid(reasonFrozen)
	}
	if _, ok := r.assignedTask(playerID, stationID); !ok {
		return invalid(reasonNotAssigned)
	}
	if p.Role != models.RoleSaboteur && sabotage.IsSabotaged(r.room.SabotageStations, stationID, now) {
		return invalid(reasonStationSabotaged)
	}

	s := r.session
	key := completionKey(playerID, stationID)
	if s.Completed[key] {
		return nil
	}
	s.Completed[key] = true
	p.TasksCompleted++
	s.Scores[playerID] += o.cfg.TaskScore

	if p.Role == models.RoleSaboteur {
		// Saboteur completions never count toward the worker target.
		p.SabotagePoints += o.cfg.SabotagePointsPerTask
	} else {
		s.WorkerCompleted++
	}
	o.persister.SavePlayer(p)

	o.broadcast(roomID, events.EventTypeTaskProgressUpdated, events.TaskProgressPayload{
		Completed: s.WorkerCompleted,
		Target:    s.Target,
	})
	o.broadcastScoresLocked(r)
	if p.Role == models.RoleSaboteur {
		o.sendSabotagePointsLocked(r, p)
		return nil
	}

	log.Debug().
		Str("room_id", roomID).
		Str("player_id", playerID).
		Str("station_id", stationID).
		Int("completed", s.WorkerCompleted).
		Int("target", s.Target).
		Msg("task completed")

	if s.Target > 0 && s.WorkerCompleted >= s.Target {
		o.checkWinLocked(r)
	}
	return nil
}

// Sabotage disables a station for the configured duration.
func (o *Orchestrator) Sabotage(roomID, playerID, stationID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	p, err := r.player(playerID)
	if err != nil {
		return err
	}
	if !o.knownStation(stationID) {
		return notFound(reasonStationNotFound)
	}
	if !r.playable() {
		return invalid(reasonGameNotActive)
	}
	if r.room.MeetingActive {
		return invalid(reasonMeetingActive)
	}
	if !p.Alive {
		return invalid(reasonDead)
	}
	if p.Role != models.RoleSaboteur {
		return invalid(reasonNotSaboteur)
	}
	if p.SabotagePoints < o.cfg.SabotageCost {
		return invalid(reasonNoPoints)
	}
	now := o.clock.Now()
	if sabotage.IsSabotaged(r.room.SabotageStations, stationID, now) {
		return invalid(reasonAlreadySabotaged)
	}

	p.SabotagePoints -= o.cfg.SabotageCost
	entry := sabotage.NewEntry(playerID, now, o.cfg.sabotageDuration())
	r.room.SabotageStations[stationID] = entry

	o.persistRoom(r)
	o.persister.SavePlayer(p)
	o.broadcast(roomID, events.EventTypeStationSabotaged, events.StationSabotagedPayload{
		StationID: stationID,
		ExpiresAt: entry.ExpiresAt,
	})
	o.sendSabotagePointsLocked(r, p)
	o.sweeper.Ensure(roomID)

	log.Info().Str("room_id", roomID).Str("station_id", stationID).Time("expires_at", entry.ExpiresAt).Msg("station sabotaged")
	return nil
}

// sweepRoom clears expired sabotage entries. It runs on the sweeper's
// goroutine and returns how many entries remain.
func (o *Orchestrator) sweepRoom(roomID string, now time.Time) int {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return 0
	}
	defer r.mu.Unlock()

	cleared := sabotage.Sweep(r.room.SabotageStations, now)
	for _, stationID := range cleared {
		o.broadcast(roomID, events.EventTypeSabotageCleared, events.SabotageClearedPayload{StationID: stationID})
		log.Debug().Str("room_id", roomID).Str("station_id", stationID).Msg("sabotage expired")
	}
	if len(cleared) > 0 {
		o.persistRoom(r)
	}
	return len(r.room.SabotageStations)
}

func (o *Orchestrator) broadcastScoresLocked(r *roomState) {
	o.broadcast(r.room.ID, events.EventTypeScoreUpdate, events.ScoreUpdatePayload{Scores: r.scoreboard()})
}

// sendSabotagePointsLocked tells the saboteur their private balance.
func (o *Orchestrator) sendSabotagePointsLocked(r *roomState, p *models.Player) {
	points := p.SabotagePoints
	o.sendTo(r.room.ID, p.ID, events.EventTypeScoreUpdate, events.ScoreUpdatePayload{
		Scores:         r.scoreboard(),
		SabotagePoints: &points,
	})
}
