package orchestrator

import "time"

// Config holds the game tuning values. Field names double as the keys of
// the yaml tuning file.
type Config struct {
	RoundSeconds      int `yaml:"round_seconds"`
	MeetingSeconds    int `yaml:"meeting_seconds"`
	DuelSeconds       int `yaml:"duel_seconds"`
	RoundBreakSeconds int `yaml:"round_break_seconds"`
	MaxRounds         int `yaml:"max_rounds"`

	TasksPerPlayer int `yaml:"tasks_per_player"`
	MinPlayers     int `yaml:"min_players"`
	MaxPlayers     int `yaml:"max_players"`

	FreezeSeconds          int `yaml:"freeze_seconds"`
	SabotageCost           int `yaml:"sabotage_cost"`
	SabotageSeconds        int `yaml:"sabotage_seconds"`
	SabotagePointsPerTask  int `yaml:"sabotage_points_per_task"`
	StartingSabotagePoints int `yaml:"starting_sabotage_points"`
	SweepIntervalMillis    int `yaml:"sweep_interval_ms"`

	TaskScore      int `yaml:"task_score"`
	ChatMaxLength  int `yaml:"chat_max_length"`
	PersistWorkers int `yaml:"persist_workers"`

	Stations []string `yaml:"stations"`
	Topics   []string `yaml:"topics"`
	Language string   `yaml:"language"`

	// ExternalTimeoutSeconds bounds a single judge or generator call.
	ExternalTimeoutSeconds int `yaml:"external_timeout_seconds"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		RoundSeconds:      180,
		MeetingSeconds:    60,
		DuelSeconds:       90,
		RoundBreakSeconds: 5,
		MaxRounds:         3,

		TasksPerPlayer: 2,
		MinPlayers:     3,
		MaxPlayers:     10,

		FreezeSeconds:          5,
		SabotageCost:           1,
		SabotageSeconds:        30,
		SabotagePointsPerTask:  1,
		StartingSabotagePoints: 1,
		SweepIntervalMillis:    1000,

		TaskScore:      100,
		ChatMaxLength:  280,
		PersistWorkers: 4,

		Stations: []string{"terminal", "server-rack", "database", "firewall", "compiler", "router"},
		Topics:   []string{"arrays", "strings", "loops", "recursion", "hash maps"},
		Language: "python",

		ExternalTimeoutSeconds: 20,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.RoundSeconds, d.RoundSeconds)
	setInt(&c.MeetingSeconds, d.MeetingSeconds)
	setInt(&c.DuelSeconds, d.DuelSeconds)
	setInt(&c.MaxRounds, d.MaxRounds)
	setInt(&c.TasksPerPlayer, d.TasksPerPlayer)
	setInt(&c.MinPlayers, d.MinPlayers)
	setInt(&c.MaxPlayers, d.MaxPlayers)
	setInt(&c.FreezeSeconds, d.FreezeSeconds)
	setInt(&c.SabotageSeconds, d.SabotageSeconds)
	setInt(&c.SweepIntervalMillis, d.SweepIntervalMillis)
	setInt(&c.ChatMaxLength, d.ChatMaxLength)
	setInt(&c.PersistWorkers, d.PersistWorkers)
	setInt(&c.ExternalTimeoutSeconds, d.ExternalTimeoutSeconds)
	if c.RoundBreakSeconds < 0 {
		c.RoundBreakSeconds = 0
	}
	if c.SabotageCost < 0 {
		c.SabotageCost = 0
	}
	if len(c.Stations) == 0 {
		c.Stations = d.Stations
	}
	if len(c.Topics) == 0 {
		c.Topics = d.Topics
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	return c
}

func (c Config) roundBreak() time.Duration {
	return time.Duration(c.RoundBreakSeconds) * time.Second
}

func (c Config) freeze() time.Duration {
	return time.Duration(c.FreezeSeconds) * time.Second
}

func (c Config) sabotageDuration() time.Duration {
	return time.Duration(c.SabotageSeconds) * time.Second
}

func (c Config) sweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMillis) * time.Millisecond
}

func (c Config) externalTimeout() time.Duration {
	return time.Duration(c.ExternalTimeoutSeconds) * time.Second
}
