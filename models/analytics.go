// api/models/analytics.go
package models

// Summary holds the scalar totals for an aggregation window.
type Summary struct {
	TotalEvents      int     `json:"totalEvents"`
	TotalSessions    int     `json:"totalSessions"`
	TotalUsers       int     `json:"totalUsers"`
	AvgEventsPerSess float64 `json:"avgEventsPerSession"`
	Days             int     `json:"days"`
}

type FeatureUsageRow struct {
	Feature        string `json:"feature"`
	Clicks         int    `json:"clicks"`
	UniqueSessions int    `json:"uniqueSessions"`
}

type PageViewRow struct {
	Page           string  `json:"page"`
	Views          int     `json:"views"`
	UniqueSessions int     `json:"uniqueSessions"`
	AvgTime        float64 `json:"avgTime"` // ms, over rows carrying timeOnPage
}

type UXIssueRow struct {
	Action      string `json:"action"`
	Element     string `json:"element"`
	Text        string `json:"text"`
	Class       string `json:"class"`
	Position    string `json:"position"`
	Occurrences int    `json:"occurrences"`
}

type ErrorRow struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type DeviceRow struct {
	Device   string `json:"device"`
	Sessions int    `json:"sessions"`
}

type SearchRow struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type FilterRow struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

type APICallRow struct {
	URL         string  `json:"url"`
	Calls       int     `json:"calls"`
	AvgDuration float64 `json:"avgDuration"` // ms
	Errors      int     `json:"errors"`
}

type HourlyRow struct {
	Hour  int `json:"hour"` // 0..23
	Count int `json:"count"`
}

type ScrollDepthRow struct {
	Depth int `json:"depth"` // checkpoint percentage
	Count int `json:"count"`
}

// LoadTimeStats summarizes performance/page_load events.
type LoadTimeStats struct {
	Samples     int     `json:"samples"`
	AvgLoadTime float64 `json:"avgLoadTime"`
	AvgTTFB     float64 `json:"avgTtfb"`
	AvgDOMReady float64 `json:"avgDomReady"`
	P95LoadTime float64 `json:"p95LoadTime"`
}

// AggregateReport is the response of GET /api/stats/summary.
type AggregateReport struct {
	Summary      Summary           `json:"summary"`
	FeatureUsage []FeatureUsageRow `json:"featureUsage"`
	PageViews    []PageViewRow     `json:"pageViews"`
	UXIssues     []UXIssueRow      `json:"uxIssues"`
	Errors       []ErrorRow        `json:"errors"`
	Devices      []DeviceRow       `json:"devices"`
	Searches     []SearchRow       `json:"searches"`
	Filters      []FilterRow       `json:"filters"`
	APICalls     []APICallRow      `json:"apiCalls"`
	Hourly       []HourlyRow       `json:"hourlyActivity"`
	ScrollDepth  []ScrollDepthRow  `json:"scrollDepth"`
	LoadTimes    LoadTimeStats     `json:"loadTimes"`
}
