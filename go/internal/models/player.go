package models

import "time"

// Role defines which side a player is on.
type Role string

const (
	RoleUnassigned Role = "unassigned"
	RoleWorker     Role = "worker"
	RoleSaboteur   Role = "saboteur"
)

// VoteSkip is the vote value for abstaining in a meeting.
const VoteSkip = "skip"

// Position is a player's location on the map.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player represents one connected participant. ID is the connection identity.
type Player struct {
	ID             string     `json:"id"`
	RoomID         string     `json:"room_id"`
	Name           string     `json:"name"`
	Avatar         string     `json:"avatar"`
	Role           Role       `json:"role"`
	Position       Position   `json:"position"`
	Alive          bool       `json:"alive"`
	TasksCompleted int        `json:"tasks_completed"`
	SabotagePoints int        `json:"sabotage_points"`
	Vote           string     `json:"vote,omitempty"`
	TimeoutUntil   *time.Time `json:"timeout_until,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`

	// CanTaskWhileDead is set for duel losers, who keep working stations after elimination.
	CanTaskWhileDead bool `json:"can_task_while_dead,omitempty"`
}

// HasVoted reports whether the player cast a vote in the current meeting.
func (p *Player) HasVoted() bool {
	return p.Vote != ""
}

// CanWork reports whether the player may use task stations.
func (p *Player) CanWork() bool {
	return p.Alive || p.CanTaskWhileDead
}

// Frozen reports whether movement and station use are blocked at now.
func (p *Player) Frozen(now time.Time) bool {
	return p.TimeoutUntil != nil && now.Before(*p.TimeoutUntil)
}

// Clone returns a copy of the player.
func (p *Player) Clone() *Player {
	c := *p
	if p.TimeoutUntil != nil {
		t := *p.TimeoutUntil
		c.TimeoutUntil = &t
	}
	return &c
}
