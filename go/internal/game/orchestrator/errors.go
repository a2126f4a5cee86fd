package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers malformed input, illegal state transitions and
	// permission violations.
	ErrValidation = errors.New("validation error")
	// ErrNotFound covers absent rooms, players and stations.
	ErrNotFound = errors.New("not found")
)

// ActionError is returned for every rejected player action. Reason is
// shown to the originating player.
type ActionError struct {
	Kind   error
	Reason string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

func (e *ActionError) Unwrap() error {
	return e.Kind
}

func invalid(reason string) error {
	return &ActionError{Kind: ErrValidation, Reason: reason}
}

func notFound(reason string) error {
	return &ActionError{Kind: ErrNotFound, Reason: reason}
}

// Reason extracts the player-facing reason from err.
func Reason(err error) string {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return "something went wrong"
}

// Rejection reasons.
const (
	reasonRoomNotFound    = "room not found"
	reasonPlayerNotFound  = "player not in room"
	reasonStationNotFound = "unknown station"
	reasonTargetNotFound  = "vote target not found"

	reasonNameRequired     = "name is required"
	reasonAlreadyInRoom    = "already in a room"
	reasonRoomFull         = "room is full"
	reasonGameInProgress   = "game already in progress"
	reasonGameNotActive    = "game is not active"
	reasonNotEnoughPlayers = "not enough players"

	reasonMeetingActive    = "a meeting is in progress"
	reasonNoMeeting        = "no meeting in progress"
	reasonDuelActive       = "a duel is in progress"
	reasonNoDuel           = "no duel in progress"
	reasonNotInDuel        = "you are not in this duel"
	reasonDuelNotReady     = "duel is not ready yet"
	reasonDead             = "dead players cannot do that"
	reasonFrozen           = "you are frozen"
	reasonAlreadyVoted     = "you have already voted"
	reasonVoteSelf         = "you cannot vote for yourself"
	reasonVoteTargetDead   = "vote target is not alive"
	reasonNotSaboteur      = "only the saboteur can sabotage"
	reasonNoPoints         = "not enough sabotage points"
	reasonAlreadySabotaged = "station is already sabotaged"
	reasonStationSabotaged = "station is sabotaged"
	reasonNotAssigned      = "that task is not assigned to you"
	reasonEmptyMessage     = "message is empty"
	reasonMessageTooLong   = "message is too long"
	reasonCodeRequired     = "code is required"
)
