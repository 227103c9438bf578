// Package reconcile compares extracted contact data against the matched
// directory entry: address similarity, update flags, and non-destructive
// email/phone list merges.
package reconcile

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/normalize"
)

// addressUpdateThreshold: the update flag is set when strictly more than half
// of the characters differ, i.e. similarity < 0.5. A similarity of exactly
// 0.5 does not flag.
const addressUpdateThreshold = 0.5

var simParams = levenshtein.NewParams()

// Result holds the reconciled contact fields for one matched record.
type Result struct {
	// Address is the authoritative postal address (directory unless the
	// directory has none).
	Address model.Address
	// ExtractedAddress is retained for the reviewer when the update flag is set.
	ExtractedAddress *model.Address
	// AddressNeedsUpdate is set when the extracted line 1 materially differs
	// from the directory's.
	AddressNeedsUpdate bool
	// Similarity is the line-1 similarity that produced the flag decision.
	Similarity float64
	// Emails and Phones are the directory lists with newly discovered values
	// appended, primary entry first.
	Emails []string
	Phones []string
}

// Reconcile compares the extracted record against the matched directory entry.
// ZIP codes are reduced to five digits on both sides; a ZIP mismatch alone
// never triggers the line-1 flag, the two are evaluated independently.
func Reconcile(rec model.RawRecord, entry model.DirectoryEntry) Result {
	extracted := extractedAddress(rec)
	directory := entry.Address
	directory.Zip = normalize.Zip(directory.Zip)

	res := Result{
		Address:    directory,
		Similarity: 1,
		Emails:     AppendEmail(entry.Emails, rec.Get(model.FieldEmail)),
		Phones:     AppendPhone(entry.Phones, rec.Get(model.FieldPhone)),
	}

	switch {
	case directory.Line1 == "" && !extracted.Empty():
		// Directory has no address at all; adopt the extracted one.
		res.Address = extracted
	case directory.Line1 != "" && extracted.Line1 != "":
		res.Similarity = AddressSimilarity(directory.Line1, extracted.Line1)
		if res.Similarity < addressUpdateThreshold {
			res.AddressNeedsUpdate = true
			res.ExtractedAddress = &extracted
		}
	}

	return res
}

// AddressSimilarity returns a character-level similarity ratio in [0, 1]
// between two line-1 addresses: 1 - levenshtein distance / longer length,
// case-insensitive. The Levenshtein ratio was chosen over positional or
// LCS measures; boundary tests depend on this choice.
func AddressSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, simParams)
}

// AppendEmail appends v to the directory email list unless an entry already
// matches case-insensitively. The existing order is preserved: primary first,
// discoveries appended.
func AppendEmail(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, e := range list {
		if strings.EqualFold(strings.TrimSpace(e), v) {
			return list
		}
	}
	return append(append([]string(nil), list...), v)
}

// AppendPhone appends v to the directory phone list unless an entry already
// matches on digits alone (formatting-insensitive).
func AppendPhone(list []string, v string) []string {
	if strings.TrimSpace(v) == "" {
		return list
	}
	needle := digits(v)
	if needle == "" {
		return list
	}
	for _, p := range list {
		if digits(p) == needle {
			return list
		}
	}
	return append(append([]string(nil), list...), strings.TrimSpace(v))
}

func extractedAddress(rec model.RawRecord) model.Address {
	return model.Address{
		Line1: rec.Get(model.FieldAddressLine1),
		City:  rec.Get(model.FieldCity),
		State: rec.Get(model.FieldState),
		Zip:   normalize.Zip(rec.Get(model.FieldZip)),
	}
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
