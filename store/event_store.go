// api/store/event_store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pulsetrack/api/models"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// IngestBatch writes one delivered batch in a single transaction: the
// session upsert (insert on first sight, otherwise refresh last_activity and
// add the batch size to total_events) followed by every event insert. Any
// failure rolls the whole batch back; no partial batch is ever visible.
func (s *EventStore) IngestBatch(ctx context.Context, batch []models.Event, meta *models.SessionMeta) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if meta != nil && meta.SessionID != "" {
		if err := upsertSession(ctx, tx, meta, len(batch), now); err != nil {
			return 0, err
		}
	}

	for _, event := range batch {
		if err := insertEvent(ctx, tx, event, now); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ingest transaction: %w", err)
	}

	log.Printf("Ingested %d events (session=%s)", len(batch), sessionLabel(meta))
	return len(batch), nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, meta *models.SessionMeta, batchSize int, now time.Time) error {
	query := `
		INSERT INTO sessions (
			session_id, user_id, user_agent, screen_resolution, language, referrer,
			started_at, last_activity, page_views, total_events
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 1, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			last_activity = EXCLUDED.last_activity,
			total_events  = sessions.total_events + $8;
	`
	_, err := tx.ExecContext(ctx, query,
		meta.SessionID,
		meta.UserID,
		meta.UserAgent,
		meta.ScreenResolution,
		meta.Language,
		meta.Referrer,
		now,
		batchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", meta.SessionID, err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, event models.Event, now time.Time) error {
	data := event.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	occurredAt := time.UnixMilli(event.Timestamp).UTC()
	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	query := `
		INSERT INTO events (
			event_id, session_id, user_id, page, category, action, data,
			viewport_w, viewport_h, device_class, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err = tx.ExecContext(ctx, query,
		eventID,
		event.SessionID,
		event.UserID,
		event.Page,
		event.Category,
		event.Action,
		payload,
		event.ViewportWidth,
		event.ViewportHeight,
		event.DeviceClass,
		occurredAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", eventID, err)
	}
	return nil
}

// GetSession returns the current session aggregate, or sql.ErrNoRows.
func (s *EventStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	sess := &models.Session{}
	query := `
		SELECT session_id, user_id, user_agent, screen_resolution, language, referrer,
		       started_at, last_activity, page_views, total_events
		FROM sessions
		WHERE session_id = $1;
	`
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&sess.SessionID,
		&sess.UserID,
		&sess.UserAgent,
		&sess.ScreenResolution,
		&sess.Language,
		&sess.Referrer,
		&sess.StartedAt,
		&sess.LastActivity,
		&sess.PageViews,
		&sess.TotalEvents,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sess, nil
}

func sessionLabel(meta *models.SessionMeta) string {
	if meta == nil {
		return "none"
	}
	return meta.SessionID
}
