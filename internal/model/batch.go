package model

import "time"

// BatchStatus tracks a processing batch through its lifecycle.
type BatchStatus string

const (
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusComplete   BatchStatus = "complete"
	BatchStatusFailed     BatchStatus = "failed"
)

// BatchSummary reports matching outcomes as counts rather than raw errors.
type BatchSummary struct {
	Input       int `json:"input"`
	Discarded   int `json:"discarded"`
	Merged      int `json:"merged"`
	Matched     int `json:"matched"`
	New         int `json:"new"`
	NeedsReview int `json:"needs_review"`
	Errors      int `json:"errors"`
}

// Batch is one processing run over a set of raw records.
type Batch struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Status    BatchStatus   `json:"status"`
	Summary   *BatchSummary `json:"summary,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
