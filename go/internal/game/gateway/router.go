package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mcdev12/sabotage/go/internal/game/events"
	"github.com/mcdev12/sabotage/go/internal/game/orchestrator"
	"github.com/mcdev12/sabotage/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Inbound message types
const (
	MsgCreateRoom      = "create-room"
	MsgJoinRoom        = "join-room"
	MsgStartGame       = "start-game"
	MsgMove            = "move"
	MsgCallMeeting     = "call-meeting"
	MsgCastVote        = "cast-vote"
	MsgMeetingChat     = "meeting-chat"
	MsgStationInteract = "station-interact"
	MsgStationComplete = "station-complete"
	MsgTriggerSabotage = "trigger-sabotage"
	MsgSubmitDuelCode  = "submit-duel-code"
	MsgRecordAttempt   = "record-attempt"
	MsgResetGame       = "reset-game"
)

// InboundMessage is the envelope every client message uses.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinRequest struct {
	RoomID string `json:"room_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type moveRequest struct {
	Position models.Position `json:"position"`
}

type voteRequest struct {
	TargetID string `json:"target_id"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type stationRequest struct {
	StationID string `json:"station_id"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type attemptRequest struct {
	StationID string `json:"station_id"`
	Code      string `json:"code"`
	Passed    bool   `json:"passed"`
	Output    string `json:"output"`
}

// GameService defines what the gateway needs from the orchestrator
type GameService interface {
	CreateRoom(playerID, name, avatar string) (string, error)
	JoinRoom(roomID, playerID, name, avatar string) error
	Leave(playerID string)
	RoomOf(playerID string) (string, bool)

	StartGame(ctx context.Context, roomID, playerID string) error
	ResetGame(roomID, playerID string) error
	Move(roomID, playerID string, pos models.Position) error
	CallMeeting(roomID, callerID string) error
	CastVote(roomID, voterID, targetID string) error
	MeetingChat(roomID, playerID, text string) error
	Interact(roomID, playerID, stationID string) error
	Complete(roomID, playerID, stationID string) error
	Sabotage(roomID, playerID, stationID string) error
	SubmitDuel(ctx context.Context, roomID, playerID, code string) error
	RecordAttempt(roomID, playerID, stationID, code string, passed bool, output string) error
}

// RoomBinder attaches connections to room broadcast pools.
type RoomBinder interface {
	Bind(playerID, roomID string)
	Unbind(playerID string)
}

// Replier sends a private event to one connection.
type Replier interface {
	SendToPlayer(roomID, playerID string, event *events.Event)
}

// Router turns inbound messages into orchestrator calls. Every failure is
// reported back to the sender as an error event.
type Router struct {
	game    GameService
	binder  RoomBinder
	replier Replier
}

// NewRouter creates a router.
func NewRouter(game GameService, binder RoomBinder, replier Replier) *Router {
	return &Router{game: game, binder: binder, replier: replier}
}

var (
	errInvalidMessage = errors.New("invalid message")
	errUnknownType    = errors.New("unknown message type")
	errNotInRoom      = errors.New("you are not in a room")
)

// HandleMessage decodes and dispatches one message from playerID.
func (rt *Router) HandleMessage(ctx context.Context, playerID string, raw []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		rt.reject(playerID, "", errInvalidMessage)
		return
	}

	roomID, err := rt.dispatch(ctx, playerID, msg)
	if err != nil {
		log.Debug().
			Err(err).
			Str("player_id", playerID).
			Str("room_id", roomID).
			Str("message_type", msg.Type).
			Msg("action rejected")
		rt.reject(playerID, roomID, err)
	}
}

// HandleDisconnect removes the player from their room.
func (rt *Router) HandleDisconnect(playerID string) {
	rt.game.Leave(playerID)
}

func (rt *Router) dispatch(ctx context.Context, playerID string, msg InboundMessage) (string, error) {
	switch msg.Type {
	case MsgCreateRoom:
		var req joinRequest
		if err := decode(msg.Data, &req); err != nil {
			return "", err
		}
		roomID, err := rt.game.CreateRoom(playerID, req.Name, req.Avatar)
		if err != nil {
			return "", err
		}
		rt.binder.Bind(playerID, roomID)
		return roomID, nil

	case MsgJoinRoom:
		var req joinRequest
		if err := decode(msg.Data, &req); err != nil {
			return "", err
		}
		// Bind first so the join broadcast reaches the new player too.
		roomID := strings.ToUpper(strings.TrimSpace(req.RoomID))
		rt.binder.Bind(playerID, roomID)
		if err := rt.game.JoinRoom(req.RoomID, playerID, req.Name, req.Avatar); err != nil {
			if current, ok := rt.game.RoomOf(playerID); ok {
				rt.binder.Bind(playerID, current)
			} else {
				rt.binder.Unbind(playerID)
			}
			return roomID, err
		}
		if current, ok := rt.game.RoomOf(playerID); ok && current != roomID {
			rt.binder.Bind(playerID, current)
			roomID = current
		}
		return roomID, nil
	}

	roomID, ok := rt.game.RoomOf(playerID)
	if !ok {
		if !knownType(msg.Type) {
			return "", errUnknownType
		}
		return "", errNotInRoom
	}

	switch msg.Type {
	case MsgStartGame:
		return roomID, rt.game.StartGame(ctx, roomID, playerID)

	case MsgResetGame:
		return roomID, rt.game.ResetGame(roomID, playerID)

	case MsgMove:
		var req moveRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		return roomID, rt.game.Move(roomID, playerID, req.Position)

	case MsgCallMeeting:
		return roomID, rt.game.CallMeeting(roomID, playerID)

	case MsgCastVote:
		var req voteRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		return roomID, rt.game.CastVote(roomID, playerID, req.TargetID)

	case MsgMeetingChat:
		var req chatRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		return roomID, rt.game.MeetingChat(roomID, playerID, req.Text)

	case MsgStationInteract, MsgStationComplete, MsgTriggerSabotage:
		var req stationRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		switch msg.Type {
		case MsgStationInteract:
			return roomID, rt.game.Interact(roomID, playerID, req.StationID)
		case MsgStationComplete:
			return roomID, rt.game.Complete(roomID, playerID, req.StationID)
		default:
			return roomID, rt.game.Sabotage(roomID, playerID, req.StationID)
		}

	case MsgSubmitDuelCode:
		var req codeRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		return roomID, rt.game.SubmitDuel(ctx, roomID, playerID, req.Code)

	case MsgRecordAttempt:
		var req attemptRequest
		if err := decode(msg.Data, &req); err != nil {
			return roomID, err
		}
		return roomID, rt.game.RecordAttempt(roomID, playerID, req.StationID, req.Code, req.Passed, req.Output)
	}

	return roomID, errUnknownType
}

func knownType(t string) bool {
	switch t {
	case MsgCreateRoom, MsgJoinRoom, MsgStartGame, MsgMove, MsgCallMeeting, MsgCastVote,
		MsgMeetingChat, MsgStationInteract, MsgStationComplete, MsgTriggerSabotage,
		MsgSubmitDuelCode, MsgRecordAttempt, MsgResetGame:
		return true
	}
	return false
}

func decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errInvalidMessage
	}
	return nil
}

func (rt *Router) reject(playerID, roomID string, err error) {
	reason := orchestrator.Reason(err)
	if errors.Is(err, errInvalidMessage) || errors.Is(err, errUnknownType) || errors.Is(err, errNotInRoom) {
		reason = err.Error()
	}
	rt.replier.SendToPlayer(roomID, playerID, events.New(events.EventTypeError, roomID, events.ErrorPayload{Message: reason}))
}
