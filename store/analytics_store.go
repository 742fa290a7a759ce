// api/store/analytics_store.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"pulsetrack/api/models"
)

// AnalyticsStore is the read-only aggregation engine. It runs plain MVCC
// reads against the event table and never takes locks that could block the
// ingestion path.
type AnalyticsStore struct {
	db *sql.DB
}

func NewAnalyticsStore(db *sql.DB) *AnalyticsStore {
	return &AnalyticsStore{db: db}
}

// Aggregate computes the full report for a trailing window of `days` days,
// filtered on server arrival time (created_at).
func (s *AnalyticsStore) Aggregate(ctx context.Context, days int) (*models.AggregateReport, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	report := &models.AggregateReport{}
	var err error

	if report.Summary, err = s.summary(ctx, since, days); err != nil {
		return nil, err
	}
	if report.FeatureUsage, err = s.featureUsage(ctx, since); err != nil {
		return nil, err
	}
	if report.PageViews, err = s.pageViews(ctx, since); err != nil {
		return nil, err
	}
	if report.UXIssues, err = s.uxIssues(ctx, since); err != nil {
		return nil, err
	}
	if report.Errors, err = s.errorMessages(ctx, since); err != nil {
		return nil, err
	}
	if report.Devices, err = s.devices(ctx, since); err != nil {
		return nil, err
	}
	if report.Searches, err = s.searches(ctx, since); err != nil {
		return nil, err
	}
	if report.Filters, err = s.filters(ctx, since); err != nil {
		return nil, err
	}
	if report.APICalls, err = s.apiCalls(ctx, since); err != nil {
		return nil, err
	}
	if report.Hourly, err = s.hourlyActivity(ctx, since); err != nil {
		return nil, err
	}
	if report.ScrollDepth, err = s.scrollDepth(ctx, since); err != nil {
		return nil, err
	}
	if report.LoadTimes, err = s.loadTimes(ctx, since); err != nil {
		return nil, err
	}

	return report, nil
}

func (s *AnalyticsStore) summary(ctx context.Context, since time.Time, days int) (models.Summary, error) {
	query := `
		SELECT count(*), count(DISTINCT session_id), count(DISTINCT user_id)
		FROM events
		WHERE created_at >= $1;
	`
	summary := models.Summary{Days: days}
	err := s.db.QueryRowContext(ctx, query, since).Scan(
		&summary.TotalEvents,
		&summary.TotalSessions,
		&summary.TotalUsers,
	)
	if err != nil {
		return summary, fmt.Errorf("failed to query summary totals: %w", err)
	}
	summary.AvgEventsPerSess = AvgEventsPerSession(summary.TotalEvents, summary.TotalSessions)
	return summary, nil
}

func (s *AnalyticsStore) featureUsage(ctx context.Context, since time.Time) ([]models.FeatureUsageRow, error) {
	query := `
		SELECT data->>'feature' AS feature, count(*) AS clicks, count(DISTINCT session_id) AS unique_sessions
		FROM events
		WHERE created_at >= $1 AND category = 'feature' AND data ? 'feature'
		GROUP BY feature
		ORDER BY clicks DESC
		LIMIT 30;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature usage: %w", err)
	}
	defer rows.Close()

	var results []models.FeatureUsageRow
	for rows.Next() {
		var row models.FeatureUsageRow
		if err := rows.Scan(&row.Feature, &row.Clicks, &row.UniqueSessions); err != nil {
			log.Printf("Error scanning feature usage row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) pageViews(ctx context.Context, since time.Time) ([]models.PageViewRow, error) {
	// AVG skips rows without a timeOnPage key (NULL extraction), so pages
	// whose views never reported a dwell time get avg_time 0.
	query := `
		SELECT page, count(*) AS views, count(DISTINCT session_id) AS unique_sessions,
		       COALESCE(avg((data->>'timeOnPage')::double precision), 0) AS avg_time
		FROM events
		WHERE created_at >= $1 AND category = 'navigation' AND action = 'page_view'
		GROUP BY page
		ORDER BY views DESC
		LIMIT 20;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query page views: %w", err)
	}
	defer rows.Close()

	var results []models.PageViewRow
	for rows.Next() {
		var row models.PageViewRow
		if err := rows.Scan(&row.Page, &row.Views, &row.UniqueSessions, &row.AvgTime); err != nil {
			log.Printf("Error scanning page view row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) uxIssues(ctx context.Context, since time.Time) ([]models.UXIssueRow, error) {
	query := `
		SELECT action,
		       data->>'element' AS element,
		       COALESCE(data->>'text', '') AS text,
		       COALESCE(data->>'class', '') AS class,
		       COALESCE((data->>'x') || ',' || (data->>'y'), '') AS position,
		       count(*) AS occurrences
		FROM events
		WHERE created_at >= $1 AND category = 'ux_issue' AND data ? 'element'
		GROUP BY action, element, text, class, position
		ORDER BY occurrences DESC
		LIMIT 20;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query ux issues: %w", err)
	}
	defer rows.Close()

	var results []models.UXIssueRow
	for rows.Next() {
		var row models.UXIssueRow
		if err := rows.Scan(&row.Action, &row.Element, &row.Text, &row.Class, &row.Position, &row.Occurrences); err != nil {
			log.Printf("Error scanning ux issue row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) errorMessages(ctx context.Context, since time.Time) ([]models.ErrorRow, error) {
	query := `
		SELECT data->>'message' AS message, count(*) AS occurrences
		FROM events
		WHERE created_at >= $1 AND category = 'error' AND data ? 'message'
		GROUP BY message
		ORDER BY occurrences DESC
		LIMIT 10;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query error messages: %w", err)
	}
	defer rows.Close()

	var results []models.ErrorRow
	for rows.Next() {
		var row models.ErrorRow
		if err := rows.Scan(&row.Message, &row.Count); err != nil {
			log.Printf("Error scanning error message row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) devices(ctx context.Context, since time.Time) ([]models.DeviceRow, error) {
	query := `
		SELECT device_class, count(DISTINCT session_id) AS sessions
		FROM events
		WHERE created_at >= $1 AND device_class <> ''
		GROUP BY device_class
		ORDER BY sessions DESC;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query device breakdown: %w", err)
	}
	defer rows.Close()

	var results []models.DeviceRow
	for rows.Next() {
		var row models.DeviceRow
		if err := rows.Scan(&row.Device, &row.Sessions); err != nil {
			log.Printf("Error scanning device row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) searches(ctx context.Context, since time.Time) ([]models.SearchRow, error) {
	query := `
		SELECT lower(trim(data->>'query')) AS query, count(*) AS searches
		FROM events
		WHERE created_at >= $1 AND category = 'search'
		  AND COALESCE(trim(data->>'query'), '') <> ''
		GROUP BY query
		ORDER BY searches DESC
		LIMIT 20;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var results []models.SearchRow
	for rows.Next() {
		var row models.SearchRow
		if err := rows.Scan(&row.Query, &row.Count); err != nil {
			log.Printf("Error scanning search row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) filters(ctx context.Context, since time.Time) ([]models.FilterRow, error) {
	query := `
		SELECT COALESCE(data->>'label', '') AS label,
		       data->>'name' AS name,
		       COALESCE(data->>'value', '') AS value,
		       count(*) AS uses
		FROM events
		WHERE created_at >= $1 AND category = 'filter' AND data ? 'name'
		GROUP BY label, name, value
		ORDER BY uses DESC
		LIMIT 20;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter usage: %w", err)
	}
	defer rows.Close()

	var results []models.FilterRow
	for rows.Next() {
		var row models.FilterRow
		if err := rows.Scan(&row.Label, &row.Name, &row.Value, &row.Count); err != nil {
			log.Printf("Error scanning filter row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) apiCalls(ctx context.Context, since time.Time) ([]models.APICallRow, error) {
	query := `
		SELECT data->>'url' AS url,
		       count(*) AS calls,
		       avg((data->>'duration')::double precision) AS avg_duration,
		       count(*) FILTER (WHERE COALESCE((data->>'status')::int, 0) >= 400) AS errors
		FROM events
		WHERE created_at >= $1 AND category = 'performance' AND action = 'api_call' AND data ? 'url'
		GROUP BY url
		ORDER BY avg_duration DESC NULLS LAST
		LIMIT 15;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query api calls: %w", err)
	}
	defer rows.Close()

	var results []models.APICallRow
	for rows.Next() {
		var row models.APICallRow
		var avgDuration sql.NullFloat64
		if err := rows.Scan(&row.URL, &row.Calls, &avgDuration, &row.Errors); err != nil {
			log.Printf("Error scanning api call row: %v", err)
			continue
		}
		row.AvgDuration = avgDuration.Float64
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) hourlyActivity(ctx context.Context, since time.Time) ([]models.HourlyRow, error) {
	query := `
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int AS hour, count(*) AS events
		FROM events
		WHERE created_at >= $1
		GROUP BY hour;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly activity: %w", err)
	}
	defer rows.Close()

	counts := map[int]int{}
	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			log.Printf("Error scanning hourly row: %v", err)
			continue
		}
		counts[hour] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return FillHourlyBuckets(counts), nil
}

func (s *AnalyticsStore) scrollDepth(ctx context.Context, since time.Time) ([]models.ScrollDepthRow, error) {
	query := `
		SELECT (data->>'depth')::int AS depth, count(*) AS hits
		FROM events
		WHERE created_at >= $1 AND category = 'engagement' AND action = 'scroll_depth' AND data ? 'depth'
		GROUP BY depth
		ORDER BY depth ASC;
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query scroll depth: %w", err)
	}
	defer rows.Close()

	var results []models.ScrollDepthRow
	for rows.Next() {
		var row models.ScrollDepthRow
		if err := rows.Scan(&row.Depth, &row.Count); err != nil {
			log.Printf("Error scanning scroll depth row: %v", err)
			continue
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *AnalyticsStore) loadTimes(ctx context.Context, since time.Time) (models.LoadTimeStats, error) {
	// No key predicate here: a row missing one timing key still feeds the
	// means for the keys it does carry.
	query := `
		SELECT (data->>'loadTime')::double precision,
		       (data->>'ttfb')::double precision,
		       (data->>'domReady')::double precision
		FROM events
		WHERE created_at >= $1 AND category = 'performance' AND action = 'page_load';
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return models.LoadTimeStats{}, fmt.Errorf("failed to query load times: %w", err)
	}
	defer rows.Close()

	var loads, ttfbs, domReadies []float64
	for rows.Next() {
		var load, ttfb, domReady sql.NullFloat64
		if err := rows.Scan(&load, &ttfb, &domReady); err != nil {
			log.Printf("Error scanning load time row: %v", err)
			continue
		}
		if load.Valid {
			loads = append(loads, load.Float64)
		}
		if ttfb.Valid {
			ttfbs = append(ttfbs, ttfb.Float64)
		}
		if domReady.Valid {
			domReadies = append(domReadies, domReady.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return models.LoadTimeStats{}, err
	}
	return ComputeLoadTimeStats(loads, ttfbs, domReadies), nil
}

// AvgEventsPerSession returns the rounded mean, guarding division by zero.
func AvgEventsPerSession(totalEvents, totalSessions int) float64 {
	if totalSessions == 0 {
		return 0
	}
	return math.Round(float64(totalEvents) / float64(totalSessions))
}

// FillHourlyBuckets expands a sparse hour->count map to all 24 buckets.
func FillHourlyBuckets(counts map[int]int) []models.HourlyRow {
	results := make([]models.HourlyRow, 24)
	for hour := 0; hour < 24; hour++ {
		results[hour] = models.HourlyRow{Hour: hour, Count: counts[hour]}
	}
	return results
}

// ComputeLoadTimeStats derives means and the p95 full-load figure from raw
// performance/page_load samples.
func ComputeLoadTimeStats(loads, ttfbs, domReadies []float64) models.LoadTimeStats {
	return models.LoadTimeStats{
		Samples:     len(loads),
		AvgLoadTime: mean(loads),
		AvgTTFB:     mean(ttfbs),
		AvgDOMReady: mean(domReadies),
		P95LoadTime: PercentileCont(loads, 0.95),
	}
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// PercentileCont computes the p-th percentile (0..1) of the samples using
// continuous interpolation over the sorted values, matching SQL
// percentile_cont semantics.
func PercentileCont(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	if lower+1 >= len(sorted) {
		return sorted[lower]
	}
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}
