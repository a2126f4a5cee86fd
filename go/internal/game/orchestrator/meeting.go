package orchestrator

import (
	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/voting"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
)

// CallMeeting opens an emergency meeting. The round clock is paused until
// the meeting, and any duel it leads to, is resolved.
func (o *Orchestrator) CallMeeting(roomID, callerID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	caller, err := r.player(callerID)
	if err != nil {
		return err
	}
	if !r.playable() {
		return invalid(reasonGameNotActive)
	}
	if r.room.MeetingActive {
		return invalid(reasonMeetingActive)
	}
	if r.duel != nil {
		return invalid(reasonDuelActive)
	}
	if !caller.Alive {
		return invalid(reasonDead)
	}

	o.roundTimer.Pause(roomID)
	r.room.MeetingActive = true
	r.meetingSeq++
	seq := r.meetingSeq
	for _, p := range r.playerList() {
		p.Vote = ""
	}

	o.persistRoom(r)
	o.persistPlayers(r)
	o.broadcast(roomID, events.EventTypeMeetingStarted, events.MeetingStartedPayload{
		CallerID: callerID,
		Duration: o.cfg.MeetingSeconds,
		Players:  r.publicPlayers(),
	})
	o.meetingTimer.Start(roomID, o.cfg.MeetingSeconds, func(id string) {
		o.onMeetingExpired(id, seq)
	})

	log.Info().Str("room_id", roomID).Str("player_id", callerID).Msg("meeting called")
	return nil
}

// CastVote records a vote for a living player or "skip". The meeting
// resolves as soon as every living player has voted.
func (o *Orchestrator) CastVote(roomID, voterID, targetID string) error {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	voter, err := r.player(voterID)
	if err != nil {
		return err
	}
	if !r.room.MeetingActive {
		return invalid(reasonNoMeeting)
	}
	if !voter.Alive {
		return invalid(reasonDead)
	}
	if voter.HasVoted() {
		return invalid(reasonAlreadyVoted)
	}
	if targetID != models.VoteSkip {
		if targetID == voterID {
			return invalid(reasonVoteSelf)
		}
		target, ok := r.players[targetID]
		if !ok {
			return notFound(reasonTargetNotFound)
		}
		if !target.Alive {
			return invalid(reasonVoteTargetDead)
		}
	}

	voter.Vote = targetID
	o.persister.SavePlayer(voter)

	players := r.playerList()
	o.broadcast(roomID, events.EventTypeVoteUpdate, events.VoteUpdatePayload{Voted: voting.Masked(players)})

	log.Debug().Str("room_id", roomID).Str("player_id", voterID).Msg("vote cast")

	if voting.AllVoted(players) {
		o.resolveMeetingLocked(r)
	}
	return nil
}

// onMeetingExpired auto-skips every living player who has not voted and
// forces resolution.
func (o *Orchestrator) onMeetingExpired(roomID string, seq int) {
	r, err := o.lockRoom(roomID)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	if !r.room.MeetingActive || r.meetingSeq != seq {
		return
	}

	skipped := 0
	for _, p := range r.playerList() {
		if p.Alive && !p.HasVoted() {
			p.Vote = models.VoteSkip
			o.persister.SavePlayer(p)
			skipped++
		}
	}
	if skipped > 0 {
		o.broadcast(roomID, events.EventTypeVoteUpdate, events.VoteUpdatePayload{Voted: voting.Masked(r.playerList())})
	}

	log.Info().Str("room_id", roomID).Int("auto_skipped", skipped).Msg("meeting timer expired")
	o.resolveMeetingLocked(r)
}

// resolveMeetingLocked tallies the ballot. The last vote and the meeting
// timer can both get here, so the meeting flag is checked again first.
func (o *Orchestrator) resolveMeetingLocked(r *roomState) {
	if !r.room.MeetingActive {
		return
	}
	roomID := r.room.ID

	r.room.MeetingActive = false
	o.meetingTimer.Stop(roomID)

	res := voting.Tally(voting.Ballot(r.playerList()))
	o.persistRoom(r)
	o.broadcast(roomID, events.EventTypeMeetingEnded, events.MeetingEndedPayload{
		Ejected:     res.Ejected,
		Tie:         res.Tie,
		TiedPlayers: res.TiedPlayers,
		Counts:      res.Counts,
		Skips:       res.SkipCount,
	})

	switch {
	case res.Tie:
		log.Info().Str("room_id", roomID).Strs("tied", res.TiedPlayers).Msg("vote tied, starting duel")
		o.startDuelLocked(r, res.TiedPlayers)

	case res.Ejected != "":
		ejected := r.players[res.Ejected]
		if ejected == nil {
			o.resumeRoundLocked(r)
			return
		}
		ejected.Alive = false
		o.persister.SavePlayer(ejected)
		o.broadcast(roomID, events.EventTypePlayerEjected, events.PlayerEjectedPayload{
			PlayerID: ejected.ID,
			Name:     ejected.Name,
			Role:     ejected.Role,
		})
		log.Info().Str("room_id", roomID).Str("player_id", ejected.ID).Str("role", string(ejected.Role)).Msg("player ejected")

		if o.checkWinLocked(r) {
			return
		}
		o.resumeRoundLocked(r)

	default:
		log.Info().Str("room_id", roomID).Msg("meeting ended without ejection")
		o.resumeRoundLocked(r)
	}
}
