package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"camserver/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite motion event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert records the start of a motion event.
func (r *EventRepository) Insert(e *model.MotionEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO motion_events (event_number, started_at, change_percentage, snapshot_id)
		VALUES (?, ?, ?, ?)
	`, e.EventNumber, e.StartedAt, e.ChangePercentage, e.SnapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert motion event: %w", err)
	}

	return result.LastInsertId()
}

// MarkEnded sets the end time of a motion event.
func (r *EventRepository) MarkEnded(id int64, endedAt time.Time) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE motion_events SET ended_at = ? WHERE id = ?`, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update motion event: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("motion event %d not found", id)
	}
	return nil
}

// List returns the most recent motion events, newest first.
func (r *EventRepository) List(limit int) ([]model.MotionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, event_number, started_at, ended_at, change_percentage, snapshot_id
		FROM motion_events ORDER BY started_at DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query motion events: %w", err)
	}
	defer rows.Close()

	var events []model.MotionEvent
	for rows.Next() {
		var (
			e       model.MotionEvent
			endedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.EventNumber, &e.StartedAt, &endedAt, &e.ChangePercentage, &e.SnapshotID); err != nil {
			return nil, fmt.Errorf("failed to scan motion event: %w", err)
		}
		if endedAt.Valid {
			t := endedAt.Time
			e.EndedAt = &t
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Count returns the number of recorded motion events.
func (r *EventRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM motion_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count motion events: %w", err)
	}
	return count, nil
}
