// api/jobs/snapshot.go
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"pulsetrack/api/insights"
	"pulsetrack/api/store"
)

// SnapshotScheduler persists one metrics snapshot per calendar date. The
// daily job covers the previous UTC day; an insights run during the day may
// overwrite today's row with fresher numbers.
type SnapshotScheduler struct {
	cron      *cron.Cron
	analytics *store.AnalyticsStore
	recs      *store.RecommendationStore
}

func NewSnapshotScheduler(analytics *store.AnalyticsStore, recs *store.RecommendationStore) *SnapshotScheduler {
	return &SnapshotScheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		analytics: analytics,
		recs:      recs,
	}
}

// Start registers the daily job (00:05 UTC) and launches the scheduler.
func (s *SnapshotScheduler) Start() error {
	_, err := s.cron.AddFunc("5 0 * * *", func() {
		if err := s.RunOnce(context.Background()); err != nil {
			log.Printf("Daily snapshot job failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// RunOnce computes the 1-day aggregate and upserts yesterday's snapshot row.
func (s *SnapshotScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	report, err := s.analytics.Aggregate(ctx, 1)
	if err != nil {
		return err
	}

	date := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	if err := s.recs.UpsertSnapshot(ctx, date, insights.SnapshotMetrics(report)); err != nil {
		return err
	}

	log.Printf("Daily snapshot stored for %s (%d events)", date, report.Summary.TotalEvents)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *SnapshotScheduler) Stop() {
	<-s.cron.Stop().Done()
}
