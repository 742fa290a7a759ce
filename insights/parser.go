// api/insights/parser.go
package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"pulsetrack/api/models"
)

// parsedRecommendation is the shape each array element must carry in the
// collaborator's reply.
type parsedRecommendation struct {
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Impact      string `json:"impact"`
	Effort      string `json:"effort"`
}

// ParseRecommendations extracts the JSON array of recommendations embedded
// in the collaborator's free-form reply. Models routinely wrap the array in
// commentary or markdown fences; everything around the array is discarded.
func ParseRecommendations(text string) ([]models.Recommendation, error) {
	parsed, err := extractRecommendationArray(text)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("response contained an empty recommendation array")
	}

	recs := make([]models.Recommendation, 0, len(parsed))
	for i, p := range parsed {
		if p.Title == "" {
			return nil, fmt.Errorf("recommendation %d has no title", i)
		}
		if !models.IsValidRecCategory(p.Category) {
			return nil, fmt.Errorf("recommendation %d has unknown category %q", i, p.Category)
		}
		if !models.IsValidPriority(p.Priority) {
			return nil, fmt.Errorf("recommendation %d has unknown priority %q", i, p.Priority)
		}
		recs = append(recs, models.Recommendation{
			Category:    p.Category,
			Priority:    p.Priority,
			Title:       p.Title,
			Description: p.Description,
			Evidence:    p.Evidence,
			Impact:      p.Impact,
			Effort:      p.Effort,
			Status:      models.StatusNew,
		})
	}
	return recs, nil
}

// extractRecommendationArray finds the first span of text that decodes as a
// JSON array of recommendation objects. Bracketed commentary ahead of the
// payload ("[the data]", "[3]" citations inside prose) is skipped over.
func extractRecommendationArray(text string) ([]parsedRecommendation, error) {
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], "[")
		if idx == -1 {
			break
		}
		start := offset + idx

		dec := json.NewDecoder(strings.NewReader(text[start:]))
		var parsed []parsedRecommendation
		if err := dec.Decode(&parsed); err == nil {
			return parsed, nil
		}
		offset = start + 1
	}
	return nil, fmt.Errorf("no recommendation array found in response")
}
