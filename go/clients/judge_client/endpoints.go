package judge_client

const (
	SubmissionsEndpoint = "/submissions"
	APIKeyHeader        = "X-Judge-Key"
)
