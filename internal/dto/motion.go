package dto

import (
	"time"

	"camserver/internal/model"
)

// MotionStatus is the JSON form of the detector status.
type MotionStatus struct {
	State                string     `json:"state"`
	MotionActive         bool       `json:"motion_active"`
	EventCount           int        `json:"event_count"`
	LastMotionTime       *time.Time `json:"last_motion_time"` // null before the first event
	LastChangePercentage float64    `json:"last_change_percentage"`
	Threshold            float64    `json:"threshold"`
	CooldownSeconds      float64    `json:"cooldown_seconds"`
}

// MotionEvents is a page of the persisted event log.
type MotionEvents struct {
	Events []model.MotionEvent `json:"events"`
	Total  int                 `json:"total"`
}
