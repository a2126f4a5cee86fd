package generator_client

const (
	TasksEndpoint   = "/tasks"
	PuzzlesEndpoint = "/puzzles"
	ReportsEndpoint = "/reports"
	APIKeyHeader    = "X-Generator-Key"
)
