package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// EventRepository provides data access for the entity event timeline.
type EventRepository interface {
	// Create appends an event and populates its ID and CreatedAt.
	Create(ctx context.Context, event *models.Event) error

	// ForEntity returns events for an entity, newest event_date first.
	// eventType "" matches all types.
	ForEntity(ctx context.Context, entityID int64, eventType string, limit int) ([]*models.Event, error)

	// Recent returns events across all entities whose event_date falls
	// within the last `days` days.
	Recent(ctx context.Context, days, limit int) ([]*models.Event, error)
}

type eventRepository struct {
	db *database.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *database.DB) EventRepository {
	return &eventRepository{db: db}
}

var _ EventRepository = (*eventRepository)(nil)

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (entity_id, event_type, event_date, source_system, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		event.EntityID, event.EventType, event.EventDate,
		event.SourceSystem, event.Payload,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) ForEntity(ctx context.Context, entityID int64, eventType string, limit int) ([]*models.Event, error) {
	query := `
		SELECT id, entity_id, event_type, event_date, source_system, payload, created_at
		FROM events
		WHERE entity_id = $1`
	args := []any{entityID}

	if eventType != "" {
		args = append(args, eventType)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY event_date DESC LIMIT $%d", len(args))

	return r.queryEvents(ctx, query, args...)
}

func (r *eventRepository) Recent(ctx context.Context, days, limit int) ([]*models.Event, error) {
	since := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT id, entity_id, event_type, event_date, source_system, payload, created_at
		FROM events
		WHERE event_date >= $1
		ORDER BY event_date DESC
		LIMIT $2`

	return r.queryEvents(ctx, query, since, limit)
}

func (r *eventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.EntityID, &e.EventType, &e.EventDate,
			&e.SourceSystem, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
