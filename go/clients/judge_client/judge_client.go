package judge_client

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/sabotage/go/clients"
)

// Submission is a piece of code to run and grade.
type Submission struct {
	Language       string `json:"language"`
	Code           string `json:"code"`
	ExpectedOutput string `json:"expectedOutput,omitempty"`
	TaskID         string `json:"taskId,omitempty"`
}

// Verdict is the judge's grading of a submission.
type Verdict struct {
	Passed bool    `json:"passed"`
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Time   float64 `json:"time"`
	Memory int64   `json:"memory"`
}

type JudgeClient struct {
	*clients.BaseClient
}

func NewJudgeClient(baseURL, apiKey string) *JudgeClient {
	client := &JudgeClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader(APIKeyHeader, apiKey)
	}
	return client
}

// Evaluate runs the submission on the judge.
func (c *JudgeClient) Evaluate(ctx context.Context, sub Submission) (Verdict, error) {
	var v Verdict
	if err := c.PostJSON(ctx, SubmissionsEndpoint, sub, &v); err != nil {
		return Verdict{}, fmt.Errorf("failed to evaluate submission: %w", err)
	}
	return v, nil
}
