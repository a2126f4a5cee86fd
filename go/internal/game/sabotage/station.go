// Package sabotage manages the lifecycle of sabotaged task stations:
// building entries, checking them and sweeping them once they expire.
package sabotage

import (
	"sort"
	"time"

	"github.com/mcdev12/sabotage/go/internal/models"
)

// NewEntry builds an active entry triggered by playerID at now.
func NewEntry(playerID string, now time.Time, duration time.Duration) models.SabotageStationEntry {
	return models.SabotageStationEntry{
		Sabotaged:   true,
		TriggeredBy: playerID,
		ExpiresAt:   now.Add(duration),
	}
}

// Expired reports whether the entry is no longer in effect at now.
func Expired(e models.SabotageStationEntry, now time.Time) bool {
	return !e.Sabotaged || !now.Before(e.ExpiresAt)
}

// IsSabotaged reports whether stationID has an entry still in effect at now.
func IsSabotaged(stations map[string]models.SabotageStationEntry, stationID string, now time.Time) bool {
	e, ok := stations[stationID]
	return ok && !Expired(e, now)
}

// Sweep deletes every expired entry from stations and returns the cleared
// station ids in sorted order.
func Sweep(stations map[string]models.SabotageStationEntry, now time.Time) []string {
	var cleared []string
	for id, e := range stations {
		if Expired(e, now) {
			delete(stations, id)
			cleared = append(cleared, id)
		}
	}
	sort.Strings(cleared)
	return cleared
}
