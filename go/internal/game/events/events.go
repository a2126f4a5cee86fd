package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is the envelope for every message sent to clients.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of outbound event
type EventType string

const (
	EventTypeRoomCreated         EventType = "room-created"
	EventTypeRoomJoined          EventType = "room-joined"
	EventTypePlayerListUpdated   EventType = "player-list-updated"
	EventTypePlayerMoved         EventType = "player-moved"
	EventTypeGameStarted         EventType = "game-started"
	EventTypeTasksAssigned       EventType = "tasks-assigned"
	EventTypeRoundStart          EventType = "round-start"
	EventTypeRoundEnd            EventType = "round-end"
	EventTypeTimerUpdate         EventType = "timer-update"
	EventTypeMeetingStarted      EventType = "meeting-started"
	EventTypeMeetingTimerSync    EventType = "meeting-timer-sync"
	EventTypeMeetingChat         EventType = "meeting-chat"
	EventTypeVoteUpdate          EventType = "vote-update"
	EventTypeMeetingEnded        EventType = "meeting-ended"
	EventTypePlayerEjected       EventType = "player-ejected"
	EventTypeDuelStarted         EventType = "duel-started"
	EventTypeDuelTimerUpdate     EventType = "duel-timer-update"
	EventTypeDuelResult          EventType = "duel-result"
	EventTypeDuelWrong           EventType = "duel-wrong"
	EventTypeStationSabotaged    EventType = "station-sabotaged"
	EventTypeSabotageCleared     EventType = "sabotage-cleared"
	EventTypeTaskAccessGranted   EventType = "task-access-granted"
	EventTypeTaskAccessBlocked   EventType = "task-access-blocked"
	EventTypeTaskProgressUpdated EventType = "task-progress-updated"
	EventTypeScoreUpdate         EventType = "score-update"
	EventTypeGameOver            EventType = "game-over"
	EventTypeAIReport            EventType = "ai-report"
	EventTypeError               EventType = "error"
)

// IsTick reports whether the event is a once-per-second countdown update.
func (t EventType) IsTick() bool {
	switch t {
	case EventTypeTimerUpdate, EventTypeMeetingTimerSync, EventTypeDuelTimerUpdate:
		return true
	}
	return false
}

// New builds an event envelope, marshalling payload into Data.
func New(eventType EventType, roomID string, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to marshal event payload")
		data = []byte("{}")
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Decode unmarshals the event data into dst.
func (e *Event) Decode(dst any) error {
	return json.Unmarshal(e.Data, dst)
}

// Broadcaster delivers events to clients. Implementations must not block
// and must not call back into the sender.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event *Event)
	SendToPlayer(roomID, playerID string, event *Event)
}
