package models

import (
	"time"
)

// SabotageStationEntry records an active sabotage on a task station.
type SabotageStationEntry struct {
	Sabotaged   bool      `json:"sabotaged"`
	TriggeredBy string    `json:"triggered_by"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Room is the authoritative record for one game room.
type Room struct {
	ID               string                          `json:"id"`
	MeetingActive    bool                            `json:"meeting_active"`
	GameActive       bool                            `json:"game_active"`
	Timer            int                             `json:"timer"`
	Round            int                             `json:"round"`
	SabotageStations map[string]SabotageStationEntry `json:"sabotage_stations"`
	CreatedAt        time.Time                       `json:"created_at"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (r *Room) Clone() *Room {
	c := *r
	c.SabotageStations = make(map[string]SabotageStationEntry, len(r.SabotageStations))
	for k, v := range r.SabotageStations {
		c.SabotageStations[k] = v
	}
	return &c
}
