package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

// NewTrackEvent builds the row for a validated track request, stamped at now.
func NewTrackEvent(req models.TrackRequest, now time.Time) (models.TrackEvent, error) {
	ev := models.TrackEvent{
		ExperimentID:      req.ExperimentID,
		UserID:            req.UserID,
		Variant:           req.Variant,
		Converted:         req.Converted,
		Timestamp:         now.UTC().Truncate(time.Microsecond),
		ActionType:        req.ActionType,
		CompletionTime:    req.CompletionTime,
		Success:           req.Success,
		CorrectWordsCount: req.CorrectWordsCount,
		TotalGuessesCount: req.TotalGuessesCount,
	}
	if req.Metadata != nil {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return models.TrackEvent{}, fmt.Errorf("encode metadata: %w", err)
		}
		ev.Metadata = raw
	}
	return ev, nil
}

// InsertTrackEvent stores ev and returns it with its id set.
func (s *Store) InsertTrackEvent(ctx context.Context, ev models.TrackEvent) (models.TrackEvent, error) {
	query := s.rebind(`
		INSERT INTO events (
			experiment_id, user_id, variant, converted, timestamp, action_type,
			completion_time, success, correct_words_count, total_guesses_count, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowContext(ctx, query,
		ev.ExperimentID, ev.UserID, string(ev.Variant), ev.Converted, formatTime(ev.Timestamp), ev.ActionType,
		ev.CompletionTime, ev.Success, ev.CorrectWordsCount, ev.TotalGuessesCount, nullString(ev.Metadata),
	).Scan(&ev.ID)
	if err != nil {
		return models.TrackEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// ListTrackEvents returns every event of an experiment, oldest first.
func (s *Store) ListTrackEvents(ctx context.Context, experimentID string) ([]models.TrackEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, experiment_id, user_id, variant, converted, timestamp, action_type,
			completion_time, success, correct_words_count, total_guesses_count, metadata
		FROM events
		WHERE experiment_id = ?
		ORDER BY id`), experimentID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []models.TrackEvent{}
	for rows.Next() {
		var (
			ev         models.TrackEvent
			variant    string
			ts         string
			completion sql.NullFloat64
			success    sql.NullBool
			correct    sql.NullInt64
			guesses    sql.NullInt64
			metadata   sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.ExperimentID, &ev.UserID, &variant, &ev.Converted, &ts, &ev.ActionType,
			&completion, &success, &correct, &guesses, &metadata); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Variant = models.Variant(variant)
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if completion.Valid {
			v := completion.Float64
			ev.CompletionTime = &v
		}
		if success.Valid {
			v := success.Bool
			ev.Success = &v
		}
		if correct.Valid {
			v := int(correct.Int64)
			ev.CorrectWordsCount = &v
		}
		if guesses.Valid {
			v := int(guesses.Int64)
			ev.TotalGuessesCount = &v
		}
		if metadata.Valid {
			ev.Metadata = json.RawMessage(metadata.String)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
