package repository

import (
	"time"

	"camserver/internal/model"
)

// SnapshotRepository defines the interface for archived snapshot metadata.
type SnapshotRepository interface {
	// Create operations
	Insert(s *model.Snapshot) error

	// Read operations
	GetByID(id string) (*model.Snapshot, error)
	List(limit, offset int) ([]model.Snapshot, error)
	Count() (int, error)

	// Delete operations
	Delete(id string) error
}

// EventRepository defines the interface for the motion event log.
type EventRepository interface {
	// Create operations
	Insert(e *model.MotionEvent) (int64, error)

	// Update operations
	MarkEnded(id int64, endedAt time.Time) error

	// Read operations
	List(limit int) ([]model.MotionEvent, error)
	Count() (int, error)
}
