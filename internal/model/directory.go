package model

// Address is a postal address as held by the customer directory.
type Address struct {
	Line1 string `json:"line1,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
	Zip   string `json:"zip,omitempty"`
}

// Empty reports whether no component of the address is set.
func (a Address) Empty() bool {
	return a.Line1 == "" && a.City == "" && a.State == "" && a.Zip == ""
}

// DirectoryEntry is a customer identity held by the external accounting
// directory. SyncToken is the directory's revision token and must be echoed
// back on updates.
type DirectoryEntry struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	GivenName   string   `json:"given_name,omitempty"`
	FamilyName  string   `json:"family_name,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Address     Address  `json:"address"`
	Emails      []string `json:"emails,omitempty"`
	Phones      []string `json:"phones,omitempty"`
	SyncToken   string   `json:"sync_token,omitempty"`
}
