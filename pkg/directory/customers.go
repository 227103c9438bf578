package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/donation-cli/internal/model"
)

// Customer represents a customer record in the directory CRM. Emails and
// phones are stored semicolon-joined in multi-value custom fields. The sync
// token is a version counter incremented on every update; writes that carry a
// stale token are rejected.
type Customer struct {
	ID                string `json:"Id"`
	Name              string `json:"Name"`
	FirstName         string `json:"FirstName__c"`
	LastName          string `json:"LastName__c"`
	CompanyName       string `json:"CompanyName__c"`
	BillingStreet     string `json:"BillingStreet"`
	BillingCity       string `json:"BillingCity"`
	BillingState      string `json:"BillingState"`
	BillingPostalCode string `json:"BillingPostalCode"`
	Emails            string `json:"Emails__c"`
	Phones            string `json:"Phones__c"`
	SyncToken         string `json:"SyncToken__c"`
}

// customerFields are the SOQL fields selected for customer queries.
var customerFields = []string{
	"Id", "Name", "FirstName__c", "LastName__c", "CompanyName__c",
	"BillingStreet", "BillingCity", "BillingState", "BillingPostalCode",
	"Emails__c", "Phones__c", "SyncToken__c",
}

// ErrStaleSyncToken is returned when an update carries an outdated sync token.
var ErrStaleSyncToken = eris.New("directory: stale sync token")

// Directory exposes customer lookup and maintenance against the CRM.
type Directory struct {
	client      Client
	searchLimit int
}

// New creates a Directory backed by the given client.
func New(client Client) *Directory {
	return &Directory{client: client, searchLimit: 25}
}

// Search finds customers whose name, email, or phone matches the query.
// Results come back in CRM relevance order.
func (d *Directory) Search(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	pattern := "%" + escapeSoql(query) + "%"
	soql := fmt.Sprintf(
		"SELECT %s FROM Customer__c WHERE Name LIKE '%s' OR Emails__c LIKE '%s' OR Phones__c LIKE '%s' LIMIT %d",
		strings.Join(customerFields, ", "),
		pattern, pattern, pattern,
		d.searchLimit,
	)

	var customers []Customer
	if err := d.client.Query(ctx, soql, &customers); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("directory: search %q", query))
	}

	entries := make([]model.DirectoryEntry, len(customers))
	for i, c := range customers {
		entries[i] = c.toEntry()
	}
	return entries, nil
}

// GetCustomer fetches a single customer by ID. Returns nil if not found.
func (d *Directory) GetCustomer(ctx context.Context, id string) (*model.DirectoryEntry, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Customer__c WHERE Id = '%s' LIMIT 1",
		strings.Join(customerFields, ", "),
		escapeSoql(id),
	)

	var customers []Customer
	if err := d.client.Query(ctx, soql, &customers); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("directory: get customer %s", id))
	}
	if len(customers) == 0 {
		return nil, nil
	}
	entry := customers[0].toEntry()
	return &entry, nil
}

// CreateCustomer inserts a new customer built from the payer and returns the
// created entry.
func (d *Directory) CreateCustomer(ctx context.Context, payer model.Payer) (*model.DirectoryEntry, error) {
	record := map[string]any{
		"Name":           payer.DisplayName,
		"SyncToken__c":   "0",
		"CompanyName__c": payer.CompanyName,
	}
	addr := payer.Address
	if payer.ExtractedAddress != nil && addr.Empty() {
		addr = *payer.ExtractedAddress
	}
	if !addr.Empty() {
		record["BillingStreet"] = addr.Line1
		record["BillingCity"] = addr.City
		record["BillingState"] = addr.State
		record["BillingPostalCode"] = addr.Zip
	}
	if len(payer.Emails) > 0 {
		record["Emails__c"] = strings.Join(payer.Emails, ";")
	}
	if len(payer.Phones) > 0 {
		record["Phones__c"] = strings.Join(payer.Phones, ";")
	}

	id, err := d.client.InsertOne(ctx, "Customer__c", record)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("directory: create customer %q", payer.DisplayName))
	}

	return &model.DirectoryEntry{
		ID:          id,
		DisplayName: payer.DisplayName,
		CompanyName: payer.CompanyName,
		Address:     addr,
		Emails:      append([]string(nil), payer.Emails...),
		Phones:      append([]string(nil), payer.Phones...),
		SyncToken:   "0",
	}, nil
}

// UpdateCustomerAddress replaces the customer's billing address. The caller's
// sync token must match the stored one.
func (d *Directory) UpdateCustomerAddress(ctx context.Context, id, syncToken string, addr model.Address) error {
	return d.update(ctx, id, syncToken, map[string]any{
		"BillingStreet":     addr.Line1,
		"BillingCity":       addr.City,
		"BillingState":      addr.State,
		"BillingPostalCode": addr.Zip,
	})
}

// UpdateCustomerContact replaces the customer's email and phone lists. The
// caller's sync token must match the stored one.
func (d *Directory) UpdateCustomerContact(ctx context.Context, id, syncToken string, emails, phones []string) error {
	return d.update(ctx, id, syncToken, map[string]any{
		"Emails__c": strings.Join(emails, ";"),
		"Phones__c": strings.Join(phones, ";"),
	})
}

func (d *Directory) update(ctx context.Context, id, syncToken string, fields map[string]any) error {
	current, err := d.GetCustomer(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return eris.Errorf("directory: customer %s not found", id)
	}
	if current.SyncToken != syncToken {
		return eris.Wrapf(ErrStaleSyncToken, "directory: customer %s has token %s, caller sent %s",
			id, current.SyncToken, syncToken)
	}

	fields["SyncToken__c"] = bumpToken(syncToken)
	if err := d.client.UpdateOne(ctx, "Customer__c", id, fields); err != nil {
		return eris.Wrap(err, fmt.Sprintf("directory: update customer %s", id))
	}
	return nil
}

func (c Customer) toEntry() model.DirectoryEntry {
	return model.DirectoryEntry{
		ID:          c.ID,
		DisplayName: c.Name,
		GivenName:   c.FirstName,
		FamilyName:  c.LastName,
		CompanyName: c.CompanyName,
		Address: model.Address{
			Line1: c.BillingStreet,
			City:  c.BillingCity,
			State: c.BillingState,
			Zip:   c.BillingPostalCode,
		},
		Emails:    splitMulti(c.Emails),
		Phones:    splitMulti(c.Phones),
		SyncToken: c.SyncToken,
	}
}

func splitMulti(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func bumpToken(token string) string {
	n, err := strconv.Atoi(token)
	if err != nil {
		return token
	}
	return strconv.Itoa(n + 1)
}

// escapeSoql escapes single quotes in SOQL string literals to prevent
// injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
