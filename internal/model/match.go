package model

// MatchStatus is the outcome of the customer-matching pass for one record.
// Exactly one status is assigned per merged record.
type MatchStatus string

const (
	// StatusNew means no directory candidate was accepted.
	StatusNew MatchStatus = "new"
	// StatusMatched means a candidate was accepted and its address is consistent.
	StatusMatched MatchStatus = "matched"
	// StatusAddressReview means a candidate was accepted but the extracted
	// address is materially different from the directory address.
	StatusAddressReview MatchStatus = "matched_address_review"
)

// MatchResult annotates a merged record with its matching outcome. Degraded
// marks records whose lookups or verification failed and fell open; their
// status is still valid but may understate the directory.
type MatchResult struct {
	Status   MatchStatus     `json:"status"`
	Entry    *DirectoryEntry `json:"entry,omitempty"`
	Strategy string          `json:"strategy,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
}
