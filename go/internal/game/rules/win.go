// Package rules decides when a game is over.
package rules

import "github.com/mcdev12/sabotage/go/internal/models"

// Outcome is the result of a win check.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWorkers  Outcome = "workers"
	OutcomeSaboteur Outcome = "saboteur"
)

// Reasons attached to a decided outcome.
const (
	ReasonTasksComplete   = "all tasks completed"
	ReasonSaboteurGone    = "the saboteur was eliminated"
	ReasonParity          = "the saboteur reached parity with the workers"
	ReasonRoundsExhausted = "the workers survived every round"
)

// Winner returns the role that owns the outcome.
func (o Outcome) Winner() models.Role {
	switch o {
	case OutcomeWorkers:
		return models.RoleWorker
	case OutcomeSaboteur:
		return models.RoleSaboteur
	}
	return models.RoleUnassigned
}

// EvaluateWin checks alive-role composition and task progress. Workers
// are checked first: a finished task board or no living saboteur wins
// for them. Otherwise the saboteur wins once living saboteurs are not
// outnumbered by living workers. A target of zero never counts as met.
func EvaluateWin(players []*models.Player, completed, target int) (Outcome, string) {
	var saboteurs, workers int
	for _, p := range players {
		if !p.Alive {
			continue
		}
		switch p.Role {
		case models.RoleSaboteur:
			saboteurs++
		case models.RoleWorker:
			workers++
		}
	}

	if target > 0 && completed >= target {
		return OutcomeWorkers, ReasonTasksComplete
	}
	if saboteurs == 0 {
		return OutcomeWorkers, ReasonSaboteurGone
	}
	if saboteurs >= workers {
		return OutcomeSaboteur, ReasonParity
	}
	return OutcomeNone, ""
}
