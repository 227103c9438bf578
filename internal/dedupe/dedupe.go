// Package dedupe groups normalized records by uniqueness key and merges
// duplicates with field-level precedence.
package dedupe

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/donation-cli/internal/model"
)

// Key is the uniqueness key for a donation record: normalized payment
// reference plus normalized amount. Records missing either component are
// discarded, never merged.
type Key struct {
	Reference string
	Amount    string
}

// KeyFor computes the uniqueness key for a normalized record. ok is false
// when either component is missing.
func KeyFor(r model.RawRecord) (Key, bool) {
	k := Key{
		Reference: r.Get(model.FieldCheckNumber),
		Amount:    r.Get(model.FieldAmount),
	}
	return k, k.Reference != "" && k.Amount != ""
}

// Result is the outcome of a deduplication pass.
type Result struct {
	Records   []model.MergedRecord
	Discarded int
}

// Dedupe merges records sharing a uniqueness key, left to right in input
// order. Output order follows the first occurrence of each key, which keeps
// results reproducible for a given input sequence.
func Dedupe(records []model.RawRecord) Result {
	var res Result
	index := make(map[Key]int, len(records))

	for i, rec := range records {
		key, ok := KeyFor(rec)
		if !ok {
			res.Discarded++
			zap.L().Info("dedupe: discarding record with incomplete uniqueness key",
				zap.String("source_id", sourceID(rec, i)),
				zap.String("donor_name", rec.Get(model.FieldDonorName)),
				zap.String("reference", key.Reference),
				zap.String("amount", key.Amount),
			)
			continue
		}

		src := sourceID(rec, i)
		if at, seen := index[key]; seen {
			merged := &res.Records[at]
			merged.Record = mergeFields(merged.Record, rec)
			merged.Sources = append(merged.Sources, src)
			continue
		}

		index[key] = len(res.Records)
		res.Records = append(res.Records, model.MergedRecord{
			Record:  rec.Clone(),
			Sources: []string{src},
		})
	}

	return res
}

// mergeFields applies field-level precedence: a non-empty value overrides an
// empty one, and when both sides are non-empty the longer string wins. Ties
// keep the first-seen value. This captures the common case where one scanned
// page is partially legible and another carries the full value.
func mergeFields(base, incoming model.RawRecord) model.RawRecord {
	for key, inVal := range incoming {
		if inVal == "" {
			continue
		}
		if cur := base[key]; cur == "" || len(inVal) > len(cur) {
			base[key] = inVal
		}
	}
	return base
}

func sourceID(r model.RawRecord, i int) string {
	if id := r.Get(model.FieldSourceID); id != "" {
		return id
	}
	return fmt.Sprintf("record-%d", i)
}
