// api/insights/generator.go
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pulsetrack/api/models"
	"pulsetrack/api/store"
)

const systemPrompt = `You are a product analyst. Given aggregated UX telemetry, produce concrete product recommendations.
Reply with a JSON array only. Each element must have the fields:
category (one of: feature_removal, feature_improvement, new_feature, performance, ux_fix, ui_improvement, workflow, accessibility),
priority (critical|high|medium|low), title, description, evidence, impact, effort.`

// completionClient is the slice of the OpenAI client the generator needs;
// tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator orchestrates one insights run against the external
// text-generation collaborator.
type Generator struct {
	client    completionClient
	model     string
	analytics *store.AnalyticsStore
	recs      *store.RecommendationStore
}

func NewGenerator(analytics *store.AnalyticsStore, recs *store.RecommendationStore) *Generator {
	model := os.Getenv("INSIGHTS_MODEL")
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Generator{
		client:    openai.NewClient(os.Getenv("OPENAI_API_KEY")),
		model:     model,
		analytics: analytics,
		recs:      recs,
	}
}

// Run aggregates the trailing window, asks the collaborator for
// recommendations, and persists the run plus today's snapshot. A failure at
// any step before the insert leaves nothing persisted.
func (g *Generator) Run(ctx context.Context, days int) ([]models.Recommendation, error) {
	report, err := g.analytics.Aggregate(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}

	prompt, err := buildPrompt(report)
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("text generation failed: %w", err)
	}

	recs, err := ParseRecommendations(text)
	if err != nil {
		return nil, fmt.Errorf("malformed collaborator response: %w", err)
	}
	for i := range recs {
		recs[i].SourceModel = g.model
	}

	if err := g.recs.InsertRun(ctx, recs); err != nil {
		return nil, fmt.Errorf("failed to persist recommendations: %w", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	if err := g.recs.UpsertSnapshot(ctx, today, SnapshotMetrics(report)); err != nil {
		// The run itself committed; the snapshot retries on the next run
		// or via the daily job.
		log.Printf("Failed to upsert snapshot for %s: %v", today, err)
	}

	return recs, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("collaborator returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(report *models.AggregateReport) (string, error) {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report for prompt: %w", err)
	}
	return fmt.Sprintf("Aggregated telemetry for the last %d days:\n\n%s\n\nProduce the recommendation array now.",
		report.Summary.Days, payload), nil
}

// SnapshotMetrics flattens a report into the fixed-shape snapshot mapping.
func SnapshotMetrics(report *models.AggregateReport) map[string]any {
	return map[string]any{
		"totalEvents":         report.Summary.TotalEvents,
		"totalSessions":       report.Summary.TotalSessions,
		"totalUsers":          report.Summary.TotalUsers,
		"avgEventsPerSession": report.Summary.AvgEventsPerSess,
		"uxIssueGroups":       len(report.UXIssues),
		"errorGroups":         len(report.Errors),
		"avgLoadTime":         report.LoadTimes.AvgLoadTime,
		"p95LoadTime":         report.LoadTimes.P95LoadTime,
	}
}
