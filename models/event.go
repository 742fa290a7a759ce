// api/models/event.go
package models

import "time"

// Event categories accepted by the ingestion endpoint.
const (
	CategoryNavigation  = "navigation"
	CategoryFeature     = "feature"
	CategoryInteraction = "interaction"
	CategorySearch      = "search"
	CategoryFilter      = "filter"
	CategoryEngagement  = "engagement"
	CategoryUXIssue     = "ux_issue"
	CategoryPerformance = "performance"
	CategoryError       = "error"
	CategoryContent     = "content"
	CategoryBusiness    = "business"
)

// Device classes derived from viewport width on the client.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

var validCategories = map[string]bool{
	CategoryNavigation:  true,
	CategoryFeature:     true,
	CategoryInteraction: true,
	CategorySearch:      true,
	CategoryFilter:      true,
	CategoryEngagement:  true,
	CategoryUXIssue:     true,
	CategoryPerformance: true,
	CategoryError:       true,
	CategoryContent:     true,
	CategoryBusiness:    true,
}

func IsValidCategory(category string) bool {
	return validCategories[category]
}

// Event is a single immutable interaction fact produced by the client SDK.
//
// Data is an open payload whose keys are defined per (category, action) pair.
// Well-known tags:
//
//	feature/feature_click:      feature
//	navigation/page_view:       title, timeOnPage (ms, set on exit)
//	engagement/scroll_depth:    depth (25|50|75|90|100)
//	ux_issue/rage_click:        x, y, element, text, class, clicks
//	ux_issue/dead_click:        x, y, element, text, class
//	search/search_query:        query, results
//	filter/filter_applied:      label, name, value
//	performance/page_load:      loadTime, ttfb, domReady (ms)
//	performance/api_call:       url, duration (ms), status
//	error/js_error:             message, source, line
//
// Unrecognized tags pass through untouched for forward compatibility.
type Event struct {
	EventID        string         `json:"eventId,omitempty"`
	Timestamp      int64          `json:"timestamp"` // epoch millis, client clock
	SessionID      string         `json:"sessionId"`
	UserID         string         `json:"userId"`
	Page           string         `json:"page"`
	Category       string         `json:"category"`
	Action         string         `json:"action"`
	Data           map[string]any `json:"data,omitempty"`
	ViewportWidth  int            `json:"viewportWidth"`
	ViewportHeight int            `json:"viewportHeight"`
	DeviceClass    string         `json:"deviceClass"`
	CreatedAt      time.Time      `json:"createdAt,omitempty"` // server arrival time
}

// SessionMeta is the client-reported session context sent alongside a batch.
type SessionMeta struct {
	SessionID        string `json:"sessionId"`
	UserID           string `json:"userId"`
	UserAgent        string `json:"userAgent"`
	ScreenResolution string `json:"screenResolution"` // "WxH"
	Language         string `json:"language"`
	Referrer         string `json:"referrer"`
}

// IngestRequest is the wire shape of POST /api/track.
type IngestRequest struct {
	Batch       []Event      `json:"batch"`
	SessionMeta *SessionMeta `json:"sessionMeta,omitempty"`
}

// Session is the server-side mutable aggregate keyed by SessionID. Every
// ingested batch for the session refreshes LastActivity and adds the batch
// size to TotalEvents.
type Session struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	UserAgent        string    `json:"userAgent"`
	ScreenResolution string    `json:"screenResolution"`
	Language         string    `json:"language"`
	Referrer         string    `json:"referrer"`
	StartedAt        time.Time `json:"startedAt"`
	LastActivity     time.Time `json:"lastActivity"`
	PageViews        int       `json:"pageViews"`
	TotalEvents      int       `json:"totalEvents"`
}
