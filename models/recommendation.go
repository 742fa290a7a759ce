package models

import "time"

// Recommendation categories produced by an insights run.
const (
	RecFeatureRemoval     = "feature_removal"
	RecFeatureImprovement = "feature_improvement"
	RecNewFeature         = "new_feature"
	RecPerformance        = "performance"
	RecUXFix              = "ux_fix"
	RecUIImprovement      = "ui_improvement"
	RecWorkflow           = "workflow"
	RecAccessibility      = "accessibility"
)

// Recommendation statuses. Transitions between valid statuses are not
// restricted; unknown values are rejected.
const (
	StatusNew      = "new"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusDone     = "done"
)

var validRecCategories = map[string]bool{
	RecFeatureRemoval:     true,
	RecFeatureImprovement: true,
	RecNewFeature:         true,
	RecPerformance:        true,
	RecUXFix:              true,
	RecUIImprovement:      true,
	RecWorkflow:           true,
	RecAccessibility:      true,
}

var validPriorities = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
}

var validStatuses = map[string]bool{
	StatusNew:      true,
	StatusAccepted: true,
	StatusRejected: true,
	StatusDone:     true,
}

func IsValidRecCategory(category string) bool { return validRecCategories[category] }
func IsValidPriority(priority string) bool    { return validPriorities[priority] }
func IsValidStatus(status string) bool        { return validStatuses[status] }

// Recommendation is one suggestion produced in bulk by an insights run.
// Only Status is mutable after creation.
type Recommendation struct {
	ID          int       `json:"id"`
	GeneratedAt time.Time `json:"generatedAt"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence"`
	Impact      string    `json:"impact"`
	Effort      string    `json:"effort"`
	Status      string    `json:"status"`
	SourceModel string    `json:"sourceModel"`
}

// StatusUpdateRequest is the body of PATCH /api/recommendations/:id/status.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// Snapshot is one daily persisted summary of aggregate metrics, keyed by
// calendar date and overwritten if a run for that date repeats.
type Snapshot struct {
	Date      string         `json:"date"` // YYYY-MM-DD
	Metrics   map[string]any `json:"metrics"`
	CreatedAt time.Time      `json:"createdAt"`
}
