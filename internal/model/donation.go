package model

// Payer identifies who the donation came from, after directory matching and
// contact reconciliation.
type Payer struct {
	CustomerID  string   `json:"customer_id,omitempty"`
	SyncToken   string   `json:"sync_token,omitempty"`
	DisplayName string   `json:"display_name"`
	CompanyName string   `json:"company_name,omitempty"`
	Address     Address  `json:"address"`
	// ExtractedAddress is retained alongside the directory address when the
	// two materially differ, so the reviewer can choose.
	ExtractedAddress *Address `json:"extracted_address,omitempty"`
	Emails           []string `json:"emails,omitempty"`
	Phones           []string `json:"phones,omitempty"`
}

// Payment holds the payment fields carried over from extraction.
type Payment struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	CheckDate   string `json:"check_date,omitempty"`
	DepositDate string `json:"deposit_date,omitempty"`
	Memo        string `json:"memo,omitempty"`
}

// StatusFlags summarizes record state for tabular display and export.
type StatusFlags struct {
	Matched            bool `json:"matched"`
	NewCustomer        bool `json:"new_customer"`
	AddressNeedsUpdate bool `json:"address_needs_update"`
	Edited             bool `json:"edited"`
	Sent               bool `json:"sent"`
}

// PayerSnapshot is the pre-edit payer identity and status, stored so a
// re-match or user edit can be reverted.
type PayerSnapshot struct {
	Payer  Payer       `json:"payer"`
	Status MatchStatus `json:"status"`
}

// EnrichedDonation is the final editable record produced by the pipeline:
// payer block, payment block, and status flags, ready for review and posting
// to the ledger.
type EnrichedDonation struct {
	ID       string         `json:"id"`
	BatchID  string         `json:"batch_id,omitempty"`
	Status   MatchStatus    `json:"status"`
	Strategy string         `json:"strategy,omitempty"`
	Payer    Payer          `json:"payer"`
	Payment  Payment        `json:"payment"`
	Flags    StatusFlags    `json:"flags"`
	Previous *PayerSnapshot `json:"previous,omitempty"`
	Sources  []string       `json:"sources,omitempty"`
}
