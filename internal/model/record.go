// Package model defines the core types flowing through the donation intake pipeline.
package model

// Canonical field keys produced by the extraction service. Extraction output
// is a flat map and may carry additional keys; the pipeline only interprets
// the ones below.
const (
	FieldSourceID      = "source_id"
	FieldDonorName     = "donor_name"
	FieldAmount        = "amount"
	FieldCheckNumber   = "check_number"
	FieldCheckDate     = "check_date"
	FieldDepositDate   = "deposit_date"
	FieldMemo          = "memo"
	FieldAddressLine1  = "address_line1"
	FieldCity          = "city"
	FieldState         = "state"
	FieldZip           = "zip"
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldDirectoryHint = "customer_hint"
)

// RawRecord is one extracted donation record: a flat field-named map with no
// required shape beyond (usually) carrying a payment reference and an amount.
type RawRecord map[string]string

// Get returns the value for key, or "" when absent.
func (r RawRecord) Get(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

// Clone returns a shallow copy of the record.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// MergedRecord is a deduplicated record plus the ordered source identifiers it
// was merged from, kept for audit display and manual unmerge.
type MergedRecord struct {
	Record  RawRecord `json:"record"`
	Sources []string  `json:"sources"`
}
