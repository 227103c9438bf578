package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/match"
	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/resilience"
	"github.com/sells-group/donation-cli/internal/store"
)

type fakeDirectory struct {
	entries map[string][]model.DirectoryEntry
	err     error
}

func (d *fakeDirectory) Search(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.entries[match.CacheKey(query)], nil
}

type approveAll struct{}

func (approveAll) Verify(ctx context.Context, record model.RawRecord, candidate model.DirectoryEntry) (match.Verdict, error) {
	return match.Verdict{Valid: true}, nil
}

func newTestPipeline(t *testing.T, dir *fakeDirectory) (*Pipeline, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	cache := match.NewDirectoryCache(dir, time.Minute)
	matcher := match.NewMatcher(cache, approveAll{}, match.Config{
		JudgeRetry: resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond},
	})
	return New(st, matcher), st
}

func rawBatch() []model.RawRecord {
	return []model.RawRecord{
		{
			model.FieldDonorName:    "JOHN SMITH",
			model.FieldCheckNumber:  "00001234",
			model.FieldAmount:       "$100",
			model.FieldAddressLine1: "123 Main St",
		},
		{
			// Duplicate of the first record after normalization.
			model.FieldDonorName:   "John Smith",
			model.FieldCheckNumber: "1234",
			model.FieldAmount:      "100.00",
			model.FieldEmail:       "john@example.com",
		},
		{
			model.FieldDonorName:   "Jane Doe",
			model.FieldCheckNumber: "5678",
			model.FieldAmount:      "50.00",
		},
		{
			// No reference and no amount, discarded at dedupe.
			model.FieldDonorName: "Anonymous",
		},
	}
}

func TestProcessEndToEnd(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]model.DirectoryEntry{
		"john smith": {{ID: "c1", DisplayName: "John Smith", SyncToken: "2"}},
	}}
	p, st := newTestPipeline(t, dir)

	res, err := p.Process(context.Background(), "donations.csv", rawBatch())
	require.NoError(t, err)

	require.NotNil(t, res.Batch.Summary)
	summary := res.Batch.Summary
	assert.Equal(t, 4, summary.Input)
	assert.Equal(t, 1, summary.Discarded)
	assert.Equal(t, 2, summary.Merged)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 1, summary.New)
	assert.Zero(t, summary.NeedsReview)
	assert.Zero(t, summary.Errors)

	assert.Equal(t, model.BatchStatusComplete, res.Batch.Status)
	require.Len(t, res.Donations, 2)

	// The persisted donations match what the pipeline returned.
	saved, err := st.ListDonations(context.Background(), store.DonationFilter{BatchID: res.Batch.ID})
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	got, err := st.GetBatch(context.Background(), res.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusComplete, got.Status)
}

func TestProcessMergesDuplicatesBeforeMatching(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]model.DirectoryEntry{
		"john smith": {{ID: "c1", DisplayName: "John Smith"}},
	}}
	p, _ := newTestPipeline(t, dir)

	res, err := p.Process(context.Background(), "donations.csv", rawBatch())
	require.NoError(t, err)

	var matched *model.EnrichedDonation
	for i := range res.Donations {
		if res.Donations[i].Payer.CustomerID == "c1" {
			matched = &res.Donations[i]
		}
	}
	require.NotNil(t, matched)
	// Fields from both duplicate rows survive the merge.
	assert.Equal(t, "123 Main St", matched.Payer.Address.Line1)
	assert.Contains(t, matched.Payer.Emails, "john@example.com")
	assert.Len(t, matched.Sources, 2)
}

func TestProcessDirectoryOutageFailsOpen(t *testing.T) {
	dir := &fakeDirectory{err: eris.New("directory down")}
	p, _ := newTestPipeline(t, dir)

	res, err := p.Process(context.Background(), "donations.csv", rawBatch())
	require.NoError(t, err)

	summary := res.Batch.Summary
	assert.Equal(t, 2, summary.New)
	assert.Zero(t, summary.Matched)
	assert.Equal(t, 2, summary.Errors)

	for _, d := range res.Donations {
		assert.Equal(t, model.StatusNew, d.Status)
		assert.Empty(t, d.Payer.CustomerID)
	}
}

func TestProcessRerunIsIdempotent(t *testing.T) {
	dir := &fakeDirectory{entries: map[string][]model.DirectoryEntry{
		"john smith": {{ID: "c1", DisplayName: "John Smith"}},
	}}
	p, _ := newTestPipeline(t, dir)

	first, err := p.Process(context.Background(), "donations.csv", rawBatch())
	require.NoError(t, err)
	second, err := p.Process(context.Background(), "donations.csv", rawBatch())
	require.NoError(t, err)

	require.Len(t, second.Donations, len(first.Donations))
	for i := range first.Donations {
		assert.NotEqual(t, first.Donations[i].ID, second.Donations[i].ID,
			"separate batches must not collide on donation IDs")
		assert.Equal(t, first.Donations[i].Status, second.Donations[i].Status)
		assert.Equal(t, first.Donations[i].Payer, second.Donations[i].Payer)
	}
}

func TestProcessEmptyInput(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeDirectory{})

	res, err := p.Process(context.Background(), "empty.csv", nil)
	require.NoError(t, err)

	assert.Zero(t, res.Batch.Summary.Input)
	assert.Empty(t, res.Donations)
	assert.Equal(t, model.BatchStatusComplete, res.Batch.Status)
}
