package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

var ErrMissingUUID = errors.New("events: webhook event has no uuid")

// FromWebhook normalises the analytics platform's event into a stored row.
// Session and window ids are lifted out of the $session_id and $window_id
// properties.
func FromWebhook(p *models.WebhookPayload, receivedAt time.Time) (models.WebhookEvent, error) {
	if p == nil || p.UUID == "" {
		return models.WebhookEvent{}, ErrMissingUUID
	}
	props := p.Properties
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return models.WebhookEvent{}, fmt.Errorf("encode properties: %w", err)
	}
	return models.WebhookEvent{
		UUID:       p.UUID,
		Event:      p.Event,
		DistinctID: p.DistinctID,
		Timestamp:  p.Timestamp,
		Properties: raw,
		SessionID:  stringProp(props, "$session_id"),
		WindowID:   stringProp(props, "$window_id"),
		ReceivedAt: receivedAt.UTC().Truncate(time.Microsecond),
	}, nil
}

func stringProp(props map[string]any, key string) *string {
	s, ok := props[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// InsertWebhookEvent stores ev. A uuid that is already stored yields
// ErrDuplicateEvent and leaves the table unchanged.
func (s *Store) InsertWebhookEvent(ctx context.Context, ev models.WebhookEvent) (models.WebhookEvent, error) {
	query := s.rebind(`
		INSERT INTO posthog_events (
			uuid, event, distinct_id, timestamp, properties, session_id, window_id, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		ev.UUID, ev.Event, ev.DistinctID, ev.Timestamp, string(ev.Properties),
		ev.SessionID, ev.WindowID, formatTime(ev.ReceivedAt),
	).Scan(&id)
	if isUniqueViolation(err) {
		return models.WebhookEvent{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.UUID)
	}
	if err != nil {
		return models.WebhookEvent{}, fmt.Errorf("insert webhook event: %w", err)
	}
	return ev, nil
}

// CountWebhookEvents returns the number of stored webhook events with uuid.
func (s *Store) CountWebhookEvents(ctx context.Context, uuid string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM posthog_events WHERE uuid = ?`), uuid).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count webhook events: %w", err)
	}
	return n, nil
}
