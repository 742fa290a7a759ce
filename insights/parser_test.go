package insights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrack/api/models"
)

const validArray = `[
  {"category": "ux_fix", "priority": "high", "title": "Fix the export button",
   "description": "Users rage click it", "evidence": "42 rage clicks on /reports",
   "impact": "high", "effort": "low"},
  {"category": "performance", "priority": "medium", "title": "Speed up /search",
   "description": "p95 load above 4s", "evidence": "load-time stats", "impact": "medium", "effort": "medium"}
]`

func TestParseRecommendationsPlainArray(t *testing.T) {
	recs, err := ParseRecommendations(validArray)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "ux_fix", recs[0].Category)
	assert.Equal(t, "high", recs[0].Priority)
	assert.Equal(t, "Fix the export button", recs[0].Title)
	assert.Equal(t, models.StatusNew, recs[0].Status)
	assert.Equal(t, "performance", recs[1].Category)
}

func TestParseRecommendationsToleratesSurroundingCommentary(t *testing.T) {
	wrapped := "Sure! Based on the telemetry, here are my suggestions:\n\n```json\n" +
		validArray + "\n```\n\nLet me know if you need more detail."

	recs, err := ParseRecommendations(wrapped)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestParseRecommendationsSkipsBracketedCommentary(t *testing.T) {
	wrapped := "Based on [the telemetry] and citation [3], two things stand out:\n\n" +
		validArray + "\n\n(Method described in [4].)"

	recs, err := ParseRecommendations(wrapped)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Fix the export button", recs[0].Title)
}

func TestParseRecommendationsRejectsMalformedReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no array at all", "I could not find anything actionable."},
		{"broken json", `[{"category": "ux_fix", "priority": }]`},
		{"empty array", "Here you go: []"},
		{"unknown category", `[{"category": "world_peace", "priority": "high", "title": "x"}]`},
		{"unknown priority", `[{"category": "ux_fix", "priority": "urgent!!", "title": "x"}]`},
		{"missing title", `[{"category": "ux_fix", "priority": "high"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ParseRecommendations(tt.text)
			assert.Error(t, err)
			assert.Nil(t, recs)
		})
	}
}
