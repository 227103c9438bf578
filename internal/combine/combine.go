// Package combine assembles the final editable donation record from the
// merged record, its match result, and the reconciled contact fields.
package combine

import (
	"reflect"

	"github.com/google/uuid"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/reconcile"
)

// donationNamespace seeds deterministic donation IDs so recombining the same
// inputs yields an identical record.
var donationNamespace = uuid.MustParse("f3b1c380-9c6d-4a63-8f0a-6f3f6f2a7f41")

// Combine builds an EnrichedDonation. For matched records the payer block
// comes from the directory entry plus the reconciled contact fields; for new
// donors it is a placeholder built from the extracted values. Combine is
// idempotent: unchanged inputs produce an identical result.
func Combine(merged model.MergedRecord, match model.MatchResult, contact reconcile.Result, batchID string) model.EnrichedDonation {
	rec := merged.Record

	payment := model.Payment{
		Reference:   rec.Get(model.FieldCheckNumber),
		Amount:      rec.Get(model.FieldAmount),
		CheckDate:   rec.Get(model.FieldCheckDate),
		DepositDate: rec.Get(model.FieldDepositDate),
		Memo:        rec.Get(model.FieldMemo),
	}

	var payer model.Payer
	if match.Status == model.StatusNew || match.Entry == nil {
		payer = placeholderPayer(rec)
	} else {
		entry := match.Entry
		payer = model.Payer{
			CustomerID:       entry.ID,
			SyncToken:        entry.SyncToken,
			DisplayName:      entry.DisplayName,
			CompanyName:      entry.CompanyName,
			Address:          contact.Address,
			ExtractedAddress: contact.ExtractedAddress,
			Emails:           contact.Emails,
			Phones:           contact.Phones,
		}
	}

	return model.EnrichedDonation{
		ID:       donationID(batchID, payment),
		BatchID:  batchID,
		Status:   match.Status,
		Strategy: match.Strategy,
		Payer:    payer,
		Payment:  payment,
		Flags: model.StatusFlags{
			Matched:            match.Status != model.StatusNew,
			NewCustomer:        match.Status == model.StatusNew,
			AddressNeedsUpdate: contact.AddressNeedsUpdate,
		},
		Sources: merged.Sources,
	}
}

// ApplyEdit replaces the payer and payment blocks with user-edited values.
// The pre-edit payer identity and status are snapshotted once (first edit
// wins) so the record can be reverted. No-op edits do not mark the record.
func ApplyEdit(d model.EnrichedDonation, payer model.Payer, payment model.Payment) model.EnrichedDonation {
	if reflect.DeepEqual(d.Payer, payer) && d.Payment == payment {
		return d
	}
	if d.Previous == nil {
		d.Previous = &model.PayerSnapshot{Payer: d.Payer, Status: d.Status}
	}
	d.Payer = payer
	d.Payment = payment
	d.Flags.Edited = true
	return d
}

// Revert restores the stored snapshot of matched identity and status, clears
// it, and marks the record edited, since the revert itself is an edit. The
// second return is false when there is no snapshot to restore.
func Revert(d model.EnrichedDonation) (model.EnrichedDonation, bool) {
	if d.Previous == nil {
		return d, false
	}
	d.Payer = d.Previous.Payer
	d.Status = d.Previous.Status
	d.Previous = nil
	d.Flags.Edited = true
	d.Flags.Matched = d.Status != model.StatusNew
	d.Flags.NewCustomer = d.Status == model.StatusNew
	return d, true
}

// placeholderPayer builds the payer block for a donor with no directory match.
func placeholderPayer(rec model.RawRecord) model.Payer {
	p := model.Payer{
		DisplayName: rec.Get(model.FieldDonorName),
		Address: model.Address{
			Line1: rec.Get(model.FieldAddressLine1),
			City:  rec.Get(model.FieldCity),
			State: rec.Get(model.FieldState),
			Zip:   rec.Get(model.FieldZip),
		},
	}
	if email := rec.Get(model.FieldEmail); email != "" {
		p.Emails = []string{email}
	}
	if phone := rec.Get(model.FieldPhone); phone != "" {
		p.Phones = []string{phone}
	}
	return p
}

// donationID derives a stable ID from the batch and the uniqueness key.
func donationID(batchID string, payment model.Payment) string {
	return uuid.NewSHA1(donationNamespace, []byte(batchID+"|"+payment.Reference+"|"+payment.Amount)).String()
}
