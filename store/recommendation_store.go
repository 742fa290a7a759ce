// api/store/recommendation_store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pulsetrack/api/models"
)

type RecommendationStore struct {
	db *sql.DB
}

func NewRecommendationStore(db *sql.DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

// InsertRun persists every recommendation from one generation run in a
// single transaction. A failure on any row rolls back the whole run.
func (s *RecommendationStore) InsertRun(ctx context.Context, recs []models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin recommendation transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO recommendations (
			generated_at, category, priority, title, description, evidence, impact, effort, status, source_model
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	now := time.Now().UTC()
	for _, rec := range recs {
		status := rec.Status
		if status == "" {
			status = models.StatusNew
		}
		_, err := tx.ExecContext(ctx, query,
			now,
			rec.Category,
			rec.Priority,
			rec.Title,
			rec.Description,
			rec.Evidence,
			rec.Impact,
			rec.Effort,
			status,
			rec.SourceModel,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation %q: %w", rec.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recommendation run: %w", err)
	}
	return nil
}

// List returns recommendations newest first, optionally filtered by status.
func (s *RecommendationStore) List(ctx context.Context, status string) ([]models.Recommendation, error) {
	query := `
		SELECT id, generated_at, category, priority, title, description, evidence, impact, effort, status, source_model
		FROM recommendations
	`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY generated_at DESC, id DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var results []models.Recommendation
	for rows.Next() {
		var rec models.Recommendation
		if err := rows.Scan(
			&rec.ID,
			&rec.GeneratedAt,
			&rec.Category,
			&rec.Priority,
			&rec.Title,
			&rec.Description,
			&rec.Evidence,
			&rec.Impact,
			&rec.Effort,
			&rec.Status,
			&rec.SourceModel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation row: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// UpdateStatus applies a status transition. Returns sql.ErrNoRows when the
// id is unknown.
func (s *RecommendationStore) UpdateStatus(ctx context.Context, id int, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET status = $1 WHERE id = $2;`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update recommendation %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpsertSnapshot writes the daily summary row, overwriting any existing row
// for the same calendar date.
func (s *RecommendationStore) UpsertSnapshot(ctx context.Context, date string, metrics map[string]any) error {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metrics: %w", err)
	}
	query := `
		INSERT INTO snapshots (snapshot_date, metrics, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			metrics = EXCLUDED.metrics,
			created_at = EXCLUDED.created_at;
	`
	if _, err := s.db.ExecContext(ctx, query, date, payload); err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s: %w", date, err)
	}
	return nil
}

// ListSnapshots returns snapshots within the trailing window, oldest first.
func (s *RecommendationStore) ListSnapshots(ctx context.Context, days int) ([]models.Snapshot, error) {
	if days <= 0 {
		days = 30
	}
	query := `
		SELECT snapshot_date::text, metrics, created_at
		FROM snapshots
		WHERE snapshot_date >= (CURRENT_DATE - $1::int)
		ORDER BY snapshot_date ASC;
	`
	rows, err := s.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var results []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		var payload []byte
		if err := rows.Scan(&snap.Date, &payload, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if err := json.Unmarshal(payload, &snap.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot metrics for %s: %w", snap.Date, err)
		}
		results = append(results, snap)
	}
	return results, rows.Err()
}
