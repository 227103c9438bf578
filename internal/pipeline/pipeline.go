// Package pipeline orchestrates a donation intake batch from raw records to
// persisted enriched donations.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/donation-cli/internal/combine"
	"github.com/sells-group/donation-cli/internal/dedupe"
	"github.com/sells-group/donation-cli/internal/match"
	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/normalize"
	"github.com/sells-group/donation-cli/internal/reconcile"
	"github.com/sells-group/donation-cli/internal/store"
)

// Pipeline runs normalization, deduplication, matching, reconciliation, and
// combination over a batch of raw records, persisting the outcome.
type Pipeline struct {
	store   store.Store
	matcher *match.Matcher
}

// New creates a Pipeline.
func New(st store.Store, matcher *match.Matcher) *Pipeline {
	return &Pipeline{store: st, matcher: matcher}
}

// Result is the outcome of one processed batch.
type Result struct {
	Batch     *model.Batch
	Donations []model.EnrichedDonation
}

// Process runs the full intake pass over raw records from the given source.
// Individual record failures degrade to StatusNew and are counted; only
// storage failures abort the batch.
func (p *Pipeline) Process(ctx context.Context, source string, raw []model.RawRecord) (*Result, error) {
	batch, err := p.store.CreateBatch(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create batch")
	}

	zap.L().Info("pipeline: batch started",
		zap.String("batch_id", batch.ID),
		zap.String("source", source),
		zap.Int("records", len(raw)),
	)

	summary := model.BatchSummary{Input: len(raw)}

	normalized := make([]model.RawRecord, len(raw))
	for i, rec := range raw {
		normalized[i] = normalize.Record(rec)
	}

	dd := dedupe.Dedupe(normalized)
	summary.Discarded = dd.Discarded
	summary.Merged = len(dd.Records)

	results := p.matcher.Match(ctx, dd.Records)

	donations := make([]model.EnrichedDonation, len(dd.Records))
	for i, merged := range dd.Records {
		res := results[i]

		var contact reconcile.Result
		if res.Entry != nil {
			contact = reconcile.Reconcile(merged.Record, *res.Entry)
		}

		donations[i] = combine.Combine(merged, res, contact, batch.ID)

		switch {
		case res.Status == model.StatusNew:
			summary.New++
		case res.Status == model.StatusAddressReview || contact.AddressNeedsUpdate:
			summary.NeedsReview++
		default:
			summary.Matched++
		}
		if res.Degraded {
			summary.Errors++
		}
	}

	if err := p.store.SaveDonations(ctx, donations); err != nil {
		if cerr := p.store.CompleteBatch(ctx, batch.ID, model.BatchStatusFailed, &summary); cerr != nil {
			zap.L().Error("pipeline: mark batch failed", zap.String("batch_id", batch.ID), zap.Error(cerr))
		}
		return nil, eris.Wrap(err, "pipeline: save donations")
	}

	if err := p.store.CompleteBatch(ctx, batch.ID, model.BatchStatusComplete, &summary); err != nil {
		return nil, eris.Wrap(err, "pipeline: complete batch")
	}

	zap.L().Info("pipeline: batch complete",
		zap.String("batch_id", batch.ID),
		zap.Int("merged", summary.Merged),
		zap.Int("discarded", summary.Discarded),
		zap.Int("matched", summary.Matched),
		zap.Int("new", summary.New),
		zap.Int("needs_review", summary.NeedsReview),
		zap.Int("errors", summary.Errors),
	)

	batch.Status = model.BatchStatusComplete
	batch.Summary = &summary
	return &Result{Batch: batch, Donations: donations}, nil
}
