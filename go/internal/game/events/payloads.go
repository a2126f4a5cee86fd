package events

import (
	"time"

	"github.com/mcdev12/sabotage/go/internal/models"
)

// Event payload types shared by the orchestrator, timers and gateway

// PlayerView is the public projection of a player. Role is only filled
// in where it has been revealed.
type PlayerView struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Avatar   string          `json:"avatar"`
	Alive    bool            `json:"alive"`
	Position models.Position `json:"position"`
	Role     models.Role     `json:"role,omitempty"`
}

// TaskView is a task as shown to its owner, without the expected output.
type TaskView struct {
	ID          string `json:"id"`
	StationID   string `json:"station_id"`
	Topic       string `json:"topic"`
	Language    string `json:"language"`
	Prompt      string `json:"prompt"`
	StarterCode string `json:"starter_code"`
}

// NewTaskView strips the answer from a task.
func NewTaskView(t models.Task) TaskView {
	return TaskView{
		ID:          t.ID,
		StationID:   t.StationID,
		Topic:       t.Topic,
		Language:    t.Language,
		Prompt:      t.Prompt,
		StarterCode: t.StarterCode,
	}
}

// LeaderboardEntry is one row of the round or final scoreboard.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Alive    bool   `json:"alive"`
}

type RoomJoinedPayload struct {
	RoomID   string       `json:"room_id"`
	PlayerID string       `json:"player_id"`
	Players  []PlayerView `json:"players"`
}

type PlayerListPayload struct {
	Players []PlayerView `json:"players"`
}

type PlayerMovedPayload struct {
	PlayerID string          `json:"player_id"`
	Position models.Position `json:"position"`
}

type GameStartedPayload struct {
	Round        int          `json:"round"`
	MaxRounds    int          `json:"max_rounds"`
	RoundSeconds int          `json:"round_seconds"`
	TaskTarget   int          `json:"task_target"`
	Players      []PlayerView `json:"players"`
}

type TasksAssignedPayload struct {
	Round          int         `json:"round"`
	Role           models.Role `json:"role"`
	Tasks          []TaskView  `json:"tasks"`
	SabotagePoints int         `json:"sabotage_points,omitempty"`
}

type RoundStartPayload struct {
	Round        int `json:"round"`
	RoundSeconds int `json:"round_seconds"`
}

type RoundEndPayload struct {
	Round       int                `json:"round"`
	MaxRounds   int                `json:"max_rounds"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// TimerPayload is used for round, meeting and duel countdown ticks.
type TimerPayload struct {
	TimeRemaining int `json:"time_remaining"`
}

type MeetingStartedPayload struct {
	CallerID string       `json:"caller_id"`
	Duration int          `json:"duration"`
	Players  []PlayerView `json:"players"`
}

type MeetingChatPayload struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// VoteUpdatePayload is the masked tally: who has voted, never for whom.
type VoteUpdatePayload struct {
	Voted map[string]bool `json:"voted"`
}

type MeetingEndedPayload struct {
	Ejected     string         `json:"ejected,omitempty"`
	Tie         bool           `json:"tie"`
	TiedPlayers []string       `json:"tied_players,omitempty"`
	Counts      map[string]int `json:"counts"`
	Skips       int            `json:"skips"`
}

type PlayerEjectedPayload struct {
	PlayerID string      `json:"player_id"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

type DuelStartedPayload struct {
	DuelID      string   `json:"duel_id"`
	TiedPlayers []string `json:"tied_players"`
	Prompt      string   `json:"prompt"`
	StarterCode string   `json:"starter_code"`
	Language    string   `json:"language"`
	Duration    int      `json:"duration"`
}

type DuelResultPayload struct {
	DuelID   string   `json:"duel_id"`
	WinnerID string   `json:"winner_id,omitempty"`
	Losers   []string `json:"losers"`
	TimedOut bool     `json:"timed_out"`
}

type DuelWrongPayload struct {
	DuelID string `json:"duel_id"`
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

type StationSabotagedPayload struct {
	StationID string    `json:"station_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SabotageClearedPayload struct {
	StationID string `json:"station_id"`
}

type TaskAccessGrantedPayload struct {
	StationID string    `json:"station_id"`
	Task      *TaskView `json:"task,omitempty"`
}

type TaskAccessBlockedPayload struct {
	StationID    string    `json:"station_id"`
	Reason       string    `json:"reason"`
	TimeoutUntil time.Time `json:"timeout_until"`
}

type TaskProgressPayload struct {
	Completed int `json:"completed"`
	Target    int `json:"target"`
}

type ScoreUpdatePayload struct {
	Scores         map[string]int `json:"scores"`
	SabotagePoints *int           `json:"sabotage_points,omitempty"`
}

type GameOverPayload struct {
	Winner      models.Role            `json:"winner"`
	Reason      string                 `json:"reason"`
	Roles       map[string]models.Role `json:"roles"`
	Players     []PlayerView           `json:"players"`
	Leaderboard []LeaderboardEntry     `json:"leaderboard"`
}

type AIReportPayload struct {
	PlayerID string `json:"player_id"`
	Report   string `json:"report"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
