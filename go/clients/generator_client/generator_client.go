package generator_client

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/sabotage/go/clients"
	"github.com/mcdev12/sabotage/go/internal/models"
)

// TaskRequest asks for one coding challenge.
type TaskRequest struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
}

// GeneratedTask is the generation service's answer.
type GeneratedTask struct {
	Prompt         string `json:"prompt"`
	StarterCode    string `json:"starterCode"`
	ExpectedOutput string `json:"expectedOutput"`
}

// ReportRequest carries a player's attempt history.
type ReportRequest struct {
	PlayerName string           `json:"playerName"`
	Role       string           `json:"role"`
	Attempts   []models.Attempt `json:"attempts"`
}

type reportResponse struct {
	Report string `json:"report"`
}

type GeneratorClient struct {
	*clients.BaseClient
}

func NewGeneratorClient(baseURL, apiKey string) *GeneratorClient {
	client := &GeneratorClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	client.SetTimeout(20 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader(APIKeyHeader, apiKey)
	}
	return client
}

func (c *GeneratorClient) GenerateTask(ctx context.Context, req TaskRequest) (GeneratedTask, error) {
	return c.generate(ctx, TasksEndpoint, req)
}

func (c *GeneratorClient) GeneratePuzzle(ctx context.Context, req TaskRequest) (GeneratedTask, error) {
	return c.generate(ctx, PuzzlesEndpoint, req)
}

func (c *GeneratorClient) GenerateReport(ctx context.Context, req ReportRequest) (string, error) {
	var resp reportResponse
	if err := c.PostJSON(ctx, ReportsEndpoint, req, &resp); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	if resp.Report == "" {
		return "", fmt.Errorf("generator returned an empty report")
	}
	return resp.Report, nil
}

func (c *GeneratorClient) generate(ctx context.Context, endpoint string, req TaskRequest) (GeneratedTask, error) {
	var task GeneratedTask
	if err := c.PostJSON(ctx, endpoint, req, &task); err != nil {
		return GeneratedTask{}, fmt.Errorf("failed to generate from %s: %w", endpoint, err)
	}
	if task.Prompt == "" || task.ExpectedOutput == "" {
		return GeneratedTask{}, fmt.Errorf("generator returned an incomplete task")
	}
	return task, nil
}
