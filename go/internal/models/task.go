package models

import "time"

// Task is a coding challenge bound to a station.
type Task struct {
	ID             string `json:"id"`
	StationID      string `json:"station_id"`
	Topic          string `json:"topic"`
	Language       string `json:"language"`
	Prompt         string `json:"prompt"`
	StarterCode    string `json:"starter_code"`
	ExpectedOutput string `json:"expected_output"`
}

// Attempt is one recorded try at a task, kept for the end-of-game report.
type Attempt struct {
	StationID string    `json:"station_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Code      string    `json:"code"`
	Passed    bool      `json:"passed"`
	Output    string    `json:"output,omitempty"`
	At        time.Time `json:"at"`
}
