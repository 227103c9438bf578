package directory

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/model"
)

// mockClient records the SOQL and DML it receives and serves canned customers.
type mockClient struct {
	customers []Customer
	queryErr  error

	queries  []string
	inserted []insertCall
	updated  []updateCall

	nextID string
}

type insertCall struct {
	object string
	record map[string]any
}

type updateCall struct {
	object string
	id     string
	fields map[string]any
}

func (m *mockClient) Query(ctx context.Context, soql string, out any) error {
	m.queries = append(m.queries, soql)
	if m.queryErr != nil {
		return m.queryErr
	}
	dst, ok := out.(*[]Customer)
	if !ok {
		return eris.Errorf("unexpected query target %T", out)
	}
	*dst = append([]Customer(nil), m.customers...)
	return nil
}

func (m *mockClient) InsertOne(ctx context.Context, object string, record map[string]any) (string, error) {
	m.inserted = append(m.inserted, insertCall{object: object, record: record})
	if m.nextID == "" {
		return "generated-id", nil
	}
	return m.nextID, nil
}

func (m *mockClient) UpdateOne(ctx context.Context, object, id string, fields map[string]any) error {
	m.updated = append(m.updated, updateCall{object: object, id: id, fields: fields})
	return nil
}

func sampleCustomer() Customer {
	return Customer{
		ID:                "c1",
		Name:              "John Smith",
		FirstName:         "John",
		LastName:          "Smith",
		BillingStreet:     "123 Main St",
		BillingCity:       "Springfield",
		BillingState:      "IL",
		BillingPostalCode: "62701",
		Emails:            "john@example.com;j.smith@work.com",
		Phones:            "555-123-4567",
		SyncToken:         "3",
	}
}

func TestSearchBuildsQueryAndMapsEntries(t *testing.T) {
	client := &mockClient{customers: []Customer{sampleCustomer()}}
	d := New(client)

	entries, err := d.Search(context.Background(), "John Smith")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "c1", e.ID)
	assert.Equal(t, "John Smith", e.DisplayName)
	assert.Equal(t, "123 Main St", e.Address.Line1)
	assert.Equal(t, []string{"john@example.com", "j.smith@work.com"}, e.Emails)
	assert.Equal(t, []string{"555-123-4567"}, e.Phones)
	assert.Equal(t, "3", e.SyncToken)

	require.Len(t, client.queries, 1)
	soql := client.queries[0]
	assert.Contains(t, soql, "FROM Customer__c")
	assert.Contains(t, soql, "Name LIKE '%John Smith%'")
	assert.Contains(t, soql, "LIMIT 25")
}

func TestSearchEmptyQueryShortCircuits(t *testing.T) {
	client := &mockClient{}
	d := New(client)

	entries, err := d.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Empty(t, client.queries)
}

func TestSearchEscapesQuotes(t *testing.T) {
	client := &mockClient{}
	d := New(client)

	_, err := d.Search(context.Background(), "O'Brien")
	require.NoError(t, err)
	require.Len(t, client.queries, 1)
	assert.Contains(t, client.queries[0], `O\'Brien`)
}

func TestGetCustomerNotFound(t *testing.T) {
	client := &mockClient{}
	d := New(client)

	entry, err := d.GetCustomer(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCreateCustomer(t *testing.T) {
	client := &mockClient{nextID: "new-c9"}
	d := New(client)

	payer := model.Payer{
		DisplayName: "Jane Doe",
		Address:     model.Address{Line1: "456 Elm St", City: "Dayton", State: "OH", Zip: "45402"},
		Emails:      []string{"jane@example.com"},
	}

	entry, err := d.CreateCustomer(context.Background(), payer)
	require.NoError(t, err)
	assert.Equal(t, "new-c9", entry.ID)
	assert.Equal(t, "0", entry.SyncToken)

	require.Len(t, client.inserted, 1)
	call := client.inserted[0]
	assert.Equal(t, "Customer__c", call.object)
	assert.Equal(t, "Jane Doe", call.record["Name"])
	assert.Equal(t, "0", call.record["SyncToken__c"])
	assert.Equal(t, "456 Elm St", call.record["BillingStreet"])
	assert.Equal(t, "jane@example.com", call.record["Emails__c"])
	_, hasPhones := call.record["Phones__c"]
	assert.False(t, hasPhones)
}

func TestCreateCustomerFallsBackToExtractedAddress(t *testing.T) {
	client := &mockClient{}
	d := New(client)

	extracted := model.Address{Line1: "789 Pine Rd", City: "Akron", State: "OH", Zip: "44301"}
	payer := model.Payer{DisplayName: "Acme Fund", ExtractedAddress: &extracted}

	entry, err := d.CreateCustomer(context.Background(), payer)
	require.NoError(t, err)
	assert.Equal(t, "789 Pine Rd", entry.Address.Line1)

	require.Len(t, client.inserted, 1)
	assert.Equal(t, "789 Pine Rd", client.inserted[0].record["BillingStreet"])
}

func TestUpdateCustomerAddressBumpsToken(t *testing.T) {
	client := &mockClient{customers: []Customer{sampleCustomer()}}
	d := New(client)

	addr := model.Address{Line1: "999 New St", City: "Springfield", State: "IL", Zip: "62702"}
	require.NoError(t, d.UpdateCustomerAddress(context.Background(), "c1", "3", addr))

	require.Len(t, client.updated, 1)
	call := client.updated[0]
	assert.Equal(t, "Customer__c", call.object)
	assert.Equal(t, "c1", call.id)
	assert.Equal(t, "999 New St", call.fields["BillingStreet"])
	assert.Equal(t, "4", call.fields["SyncToken__c"])
}

func TestUpdateCustomerContactJoinsLists(t *testing.T) {
	client := &mockClient{customers: []Customer{sampleCustomer()}}
	d := New(client)

	emails := []string{"john@example.com", "new@example.com"}
	phones := []string{"555-123-4567", "555-987-6543"}
	require.NoError(t, d.UpdateCustomerContact(context.Background(), "c1", "3", emails, phones))

	require.Len(t, client.updated, 1)
	call := client.updated[0]
	assert.Equal(t, strings.Join(emails, ";"), call.fields["Emails__c"])
	assert.Equal(t, strings.Join(phones, ";"), call.fields["Phones__c"])
}

func TestUpdateRejectsStaleToken(t *testing.T) {
	client := &mockClient{customers: []Customer{sampleCustomer()}}
	d := New(client)

	err := d.UpdateCustomerContact(context.Background(), "c1", "2", nil, nil)
	assert.ErrorIs(t, err, ErrStaleSyncToken)
	assert.Empty(t, client.updated)
}

func TestUpdateMissingCustomer(t *testing.T) {
	client := &mockClient{}
	d := New(client)

	err := d.UpdateCustomerAddress(context.Background(), "ghost", "0", model.Address{})
	assert.Error(t, err)
	assert.Empty(t, client.updated)
}

func TestSplitMulti(t *testing.T) {
	assert.Nil(t, splitMulti(""))
	assert.Equal(t, []string{"a@b.com"}, splitMulti("a@b.com"))
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, splitMulti("a@b.com; c@d.com;"))
}

func TestBumpToken(t *testing.T) {
	assert.Equal(t, "1", bumpToken("0"))
	assert.Equal(t, "10", bumpToken("9"))
	// Non-numeric tokens pass through unchanged.
	assert.Equal(t, "abc", bumpToken("abc"))
}
