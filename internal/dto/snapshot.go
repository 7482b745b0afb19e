package dto

import "time"

// SnapshotInfo describes a snapshot without its payload.
type SnapshotInfo struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	ChangePercentage float64   `json:"change_percentage"`
	Size             int       `json:"size"`
}

type SnapshotList struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
	Limit     int            `json:"limit"`
}
