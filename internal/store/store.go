// Package store persists processing batches and enriched donations.
package store

import (
	"context"

	"github.com/sells-group/donation-cli/internal/model"
)

// BatchFilter specifies criteria for listing batches.
type BatchFilter struct {
	Status model.BatchStatus `json:"status,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// DonationFilter specifies criteria for listing donations.
type DonationFilter struct {
	BatchID string            `json:"batch_id,omitempty"`
	Status  model.MatchStatus `json:"status,omitempty"`
	Unsent  bool              `json:"unsent,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake pipeline.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, source string) (*model.Batch, error)
	CompleteBatch(ctx context.Context, batchID string, status model.BatchStatus, summary *model.BatchSummary) error
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error)

	// Donations
	SaveDonations(ctx context.Context, donations []model.EnrichedDonation) error
	GetDonation(ctx context.Context, id string) (*model.EnrichedDonation, error)
	ListDonations(ctx context.Context, filter DonationFilter) ([]model.EnrichedDonation, error)
	UpdateDonation(ctx context.Context, d model.EnrichedDonation) error
	MarkSent(ctx context.Context, ids []string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
