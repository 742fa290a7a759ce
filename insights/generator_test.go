package insights

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

type fakeCompletion struct {
	reply string
	err   error
	req   openai.ChatCompletionRequest
}

func (f *fakeCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.reply}},
		},
	}, nil
}

func TestGenerateForwardsPromptAndReply(t *testing.T) {
	fake := &fakeCompletion{reply: "the reply"}
	g := &Generator{client: fake, model: "test-model"}

	text, err := g.generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "the reply", text)
	assert.Equal(t, "test-model", fake.req.Model)
	require.Len(t, fake.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.req.Messages[0].Role)
	assert.Equal(t, "the prompt", fake.req.Messages[1].Content)
}

func TestGenerateSurfacesCollaboratorFailure(t *testing.T) {
	fake := &fakeCompletion{err: errors.New("rate limited")}
	g := &Generator{client: fake, model: "test-model"}

	_, err := g.generate(context.Background(), "the prompt")
	assert.ErrorContains(t, err, "rate limited")
}

func TestGenerateRejectsEmptyChoices(t *testing.T) {
	g := &Generator{client: &emptyCompletion{}, model: "test-model"}
	_, err := g.generate(context.Background(), "the prompt")
	assert.ErrorContains(t, err, "no choices")
}

type emptyCompletion struct{}

func (e *emptyCompletion) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{}, nil
}

func TestBuildPromptEmbedsWindowAndReport(t *testing.T) {
	report := &models.AggregateReport{}
	report.Summary.Days = 14
	report.Summary.TotalEvents = 321

	prompt, err := buildPrompt(report)
	require.NoError(t, err)
	assert.Contains(t, prompt, "last 14 days")
	assert.Contains(t, prompt, `"totalEvents": 321`)
}

func TestSnapshotMetricsShape(t *testing.T) {
	report := &models.AggregateReport{}
	report.Summary.TotalEvents = 100
	report.Summary.TotalSessions = 3
	report.Summary.AvgEventsPerSess = 33
	report.LoadTimes.P95LoadTime = 480

	metrics := SnapshotMetrics(report)
	assert.Equal(t, 100, metrics["totalEvents"])
	assert.Equal(t, 3, metrics["totalSessions"])
	assert.Equal(t, 33.0, metrics["avgEventsPerSession"])
	assert.Equal(t, 480.0, metrics["p95LoadTime"])
}
