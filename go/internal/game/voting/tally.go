// Package voting holds the pure meeting vote arithmetic: who may vote,
// whether everyone has, and how a finished ballot resolves.
package voting

import (
	"sort"

	"github.com/mcdev12/sabotage/go/internal/models"
)

// Result is the outcome of resolving one meeting.
type Result struct {
	// Ejected is the player with the strict maximum of real votes, or "".
	Ejected string
	// Tie is set when two or more targets share the maximum.
	Tie         bool
	TiedPlayers []string
	Counts      map[string]int
	SkipCount   int
}

// Tally resolves a ballot keyed voter id -> target id. "skip" and empty
// targets count toward SkipCount and never toward ejection.
func Tally(votes map[string]string) Result {
	res := Result{Counts: make(map[string]int)}

	for _, target := range votes {
		if target == "" || target == models.VoteSkip {
			res.SkipCount++
			continue
		}
		res.Counts[target]++
	}

	max := 0
	var leaders []string
	for target, n := range res.Counts {
		switch {
		case n > max:
			max = n
			leaders = []string{target}
		case n == max:
			leaders = append(leaders, target)
		}
	}

	switch len(leaders) {
	case 0:
	case 1:
		res.Ejected = leaders[0]
	default:
		sort.Strings(leaders)
		res.Tie = true
		res.TiedPlayers = leaders
	}
	return res
}

// AllVoted reports whether every living player has cast a vote. A room
// with nobody alive is never considered complete.
func AllVoted(players []*models.Player) bool {
	alive := 0
	for _, p := range players {
		if !p.Alive {
			continue
		}
		alive++
		if !p.HasVoted() {
			return false
		}
	}
	return alive > 0
}

// Masked returns the has-voted flag for each living player without
// revealing targets.
func Masked(players []*models.Player) map[string]bool {
	out := make(map[string]bool, len(players))
	for _, p := range players {
		if p.Alive {
			out[p.ID] = p.HasVoted()
		}
	}
	return out
}

// Ballot collects the current votes of living players.
func Ballot(players []*models.Player) map[string]string {
	out := make(map[string]string, len(players))
	for _, p := range players {
		if p.Alive && p.HasVoted() {
			out[p.ID] = p.Vote
		}
	}
	return out
}
