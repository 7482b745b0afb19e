package model

import "time"

// MotionEvent represents one Idle→MotionDetected→Cooldown cycle.
type MotionEvent struct {
	ID               int64      `json:"id"`
	EventNumber      int        `json:"event_number"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"` // nil while motion is ongoing
	ChangePercentage float64    `json:"change_percentage"`
	SnapshotID       string     `json:"snapshot_id,omitempty"`
}
