package orchestrator

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/clients/judge_client"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
)

// startDuelLocked registers a duel among tied and fetches its puzzle in
// the background. The round clock stays paused throughout.
func (o *Orchestrator) startDuelLocked(r *roomState, tied []string) {
	d := &Duel{
		ID:      uuid.New().String(),
		Tied:    append([]string(nil), tied...),
		Results: make(map[string]string, len(tied)),
	}
	for _, id := range tied {
		d.Results[id] = duelPending
	}
	r.duel = d

	go o.prepareDuel(r.room.ID, d.ID)
}

func (o *Orchestrator) prepareDuel(roomID, duelID string) {
	puzzle := o.requestPuzzle(roomID)

	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	d := r.duel
	if d == nil || d.ID != duelID || !r.room.GameActive {
		return
	}
	d.Puzzle = models.Task{
		ID:             uuid.New().String(),
		Topic:          "duel",
		Language:       o.cfg.Language,
		Prompt:         puzzle.Prompt,
		StarterCode:    puzzle.StarterCode,
		ExpectedOutput: puzzle.ExpectedOutput,
	}
	d.Ready = true

	o.broadcast(roomID, events.EventTypeDuelStarted, events.DuelStartedPayload{
		DuelID:      d.ID,
		TiedPlayers: d.Tied,
		Prompt:      d.Puzzle.Prompt,
		StarterCode: d.Puzzle.StarterCode,
		Language:    d.Puzzle.Language,
		Duration:    o.cfg.DuelSeconds,
	})
	o.duelTimer.Start(roomID, o.cfg.DuelSeconds, func(id string) {
		o.onDuelExpired(id, duelID)
	})
}

func (o *Orchestrator) requestPuzzle(roomID string) generator_client.GeneratedTask {
	if o.generator == nil {
		return fallbackPuzzle()
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.externalTimeout())
	defer cancel()

	p, err := o.generator.GeneratePuzzle(ctx, generator_client.TaskRequest{Topic: "duel", Language: o.cfg.Language})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("puzzle generation failed, using canned puzzle")
		return fallbackPuzzle()
	}
	return p
}

// SubmitDuel grades a tied player's duel code. The first correct
// submission wins; a wrong one only tells the submitter to retry.
func (o *Orchestrator) SubmitDuel(ctx context.Context, roomID, playerID, code string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}

	if _, err := r.player(playerID); err != nil {
		r.mu.Unlock()
		return err
	}
	d := r.duel
	if d == nil {
		r.mu.Unlock()
		return invalid(reasonNoDuel)
	}
	if _, tied := d.Results[playerID]; !tied {
		r.mu.Unlock()
		return invalid(reasonNotInDuel)
	}
	if !d.Ready {
		r.mu.Unlock()
		return invalid(reasonDuelNotReady)
	}
	if strings.TrimSpace(code) == "" {
		r.mu.Unlock()
		return invalid(reasonCodeRequired)
	}
	duelID := d.ID
	puzzle := d.Puzzle
	r.mu.Unlock()

	passed, verdict := o.grade(ctx, roomID, puzzle, code)

	r, err = o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	// The duel may have been won or timed out while grading.
	d = r.duel
	if d == nil || d.ID != duelID {
		return invalid(reasonNoDuel)
	}

	if !passed {
		d.Results[playerID] = duelWrong
		o.sendTo(roomID, playerID, events.EventTypeDuelWrong, events.DuelWrongPayload{
			DuelID: duelID,
			Stdout: verdict.Stdout,
			Stderr: verdict.Stderr,
		})
		return nil
	}

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("duel won")
	o.finishDuelLocked(r, playerID, false)
	return nil
}

// grade runs code through the judge, falling back to a substring check
// when it is unreachable.
func (o *Orchestrator) grade(ctx context.Context, roomID string, task models.Task, code string) (bool, judge_client.Verdict) {
	if o.judge == nil {
		return fallbackJudge(code, task.ExpectedOutput), judge_client.Verdict{}
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.externalTimeout())
	defer cancel()

	v, err := o.judge.Evaluate(ctx, judge_client.Submission{
		Language:       task.Language,
		Code:           code,
		ExpectedOutput: task.ExpectedOutput,
		TaskID:         task.ID,
	})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("judge unavailable, using substring check")
		return fallbackJudge(code, task.ExpectedOutput), judge_client.Verdict{}
	}
	return verdictPassed(v, task.ExpectedOutput), v
}

func (o *Orchestrator) onDuelExpired(roomID, duelID string) {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	if r.duel == nil || r.duel.ID != duelID {
		return
	}
	log.Info().Str("room_id", roomID).Msg("duel timed out without a winner")
	o.finishDuelLocked(r, "", true)
}

// finishDuelLocked eliminates every tied player except winnerID. Losers
// keep working their stations.
func (o *Orchestrator) finishDuelLocked(r *roomState, winnerID string, timedOut bool) {
	roomID := r.room.ID
	d := r.duel
	r.duel = nil
	o.duelTimer.Stop(roomID)

	losers := make([]string, 0, len(d.Tied))
	for _, id := range d.Tied {
		if id == winnerID {
			d.Results[id] = duelWon
			continue
		}
		d.Results[id] = duelLost
		losers = append(losers, id)
		if p, ok := r.players[id]; ok {
			p.Alive = false
			p.CanTaskWhileDead = true
			o.persister.SavePlayer(p)
		}
	}

	o.broadcast(roomID, events.EventTypeDuelResult, events.DuelResultPayload{
		DuelID:   d.ID,
		WinnerID: winnerID,
		Losers:   losers,
		TimedOut: timedOut,
	})

	if o.checkWinLocked(r) {
		return
	}
	o.resumeRoundLocked(r)
}
