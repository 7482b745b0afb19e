package model

import "time"

// Snapshot represents an archived motion snapshot record.
type Snapshot struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	FilePath         string    `json:"filepath"`
	Timestamp        time.Time `json:"timestamp"`
	ChangePercentage float64   `json:"change_percentage"`
	FileSize         int64     `json:"filesize"`
}
