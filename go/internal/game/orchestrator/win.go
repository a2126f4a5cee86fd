package orchestrator

import (
	"context"

	"github.com/mcdev12/sabotage/go/clients/generator_client"
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/rules"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// checkWinLocked evaluates the room and ends the game on a decided
// outcome. It reports whether the game ended.
func (o *Orchestrator) checkWinLocked(r *roomState) bool {
	if r.session == nil || !r.room.GameActive {
		return false
	}
	outcome, reason := rules.EvaluateWin(r.playerList(), r.session.WorkerCompleted, r.session.Target)
	if outcome == rules.OutcomeNone {
		return false
	}
	o.endGameLocked(r, outcome, reason)
	return true
}

type reportJob struct {
	playerID string
	name     string
	role     models.Role
	attempts []models.Attempt
}

// endGameLocked stops every clock, reveals all roles and announces the
// outcome. Reports are generated afterwards off the critical path.
func (o *Orchestrator) endGameLocked(r *roomState, outcome rules.Outcome, reason string) {
	roomID := r.room.ID

	r.epoch++
	r.stopBreakTimer()
	o.stopRoomClocks(roomID)

	r.room.GameActive = false
	r.room.MeetingActive = false
	r.room.Timer = 0
	r.preparing = false
	r.roundExpired = false
	r.duel = nil

	roles := make(map[string]models.Role, len(r.players))
	players := make([]events.PlayerView, 0, len(r.players))
	jobs := make([]reportJob, 0, len(r.players))
	for _, p := range r.playerList() {
		roles[p.ID] = p.Role
		players = append(players, publicView(p, true))
		jobs = append(jobs, reportJob{
			playerID: p.ID,
			name:     p.Name,
			role:     p.Role,
			attempts: append([]models.Attempt(nil), r.session.Attempts[p.ID]...),
		})
	}

	o.broadcast(roomID, events.EventTypeGameOver, events.GameOverPayload{
		Winner:      outcome.Winner(),
		Reason:      reason,
		Roles:       roles,
		Players:     players,
		Leaderboard: r.leaderboard(),
	})
	r.session = nil

	o.persistRoom(r)
	o.persistPlayers(r)

	log.Info().Str("room_id", roomID).Str("winner", string(outcome)).Str("reason", reason).Msg("game over")

	go o.sendReports(roomID, jobs)
}

// sendReports asks the report service for every player's summary in
// parallel and delivers each privately.
func (o *Orchestrator) sendReports(roomID string, jobs []reportJob) {
	g := new(errgroup.Group)
	g.SetLimit(maxParallelGeneration)

	for _, job := range jobs {
		g.Go(func() error {
			o.sendTo(roomID, job.playerID, events.EventTypeAIReport, events.AIReportPayload{
				PlayerID: job.playerID,
				Report:   o.requestReport(roomID, job),
			})
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) requestReport(roomID string, job reportJob) string {
	if o.generator == nil {
		return fallbackReport(job.name, job.role, job.attempts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.externalTimeout())
	defer cancel()

	report, err := o.generator.GenerateReport(ctx, generator_client.ReportRequest{
		PlayerName: job.name,
		Role:       string(job.role),
		Attempts:   job.attempts,
	})
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("player_id", job.playerID).Msg("report generation failed, using local summary")
		return fallbackReport(job.name, job.role, job.attempts)
	}
	return report
}
