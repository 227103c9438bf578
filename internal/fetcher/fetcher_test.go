package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/model"
)

func TestCanonicalField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Donor Name", model.FieldDonorName},
		{"REMITTER", model.FieldDonorName},
		{"Check No.", model.FieldCheckNumber},
		{"Serial Number", model.FieldCheckNumber},
		{"Gift Amount", model.FieldAmount},
		{"Zip Code", model.FieldZip},
		{"E-Mail Address", model.FieldEmail},
		{"Account Name", model.FieldDirectoryHint},
		{"Transaction ID", model.FieldSourceID},
		// Unknown headers are kept with punctuation collapsed.
		{"Fund Designation", "fund_designation"},
		{"Teller #", "teller"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalField(tt.in), "CanonicalField(%q)", tt.in)
	}
}

func TestRecordsFromRows(t *testing.T) {
	header := []string{"Donor Name", "Amount", "Check Number"}
	rows := [][]string{
		{"John Smith", "100.00", "1234"},
		{"", "", ""}, // blank row skipped
		{"Jane Doe", "50.00"},
		{"Acme Fund", "25.00", "5678", "overflow cell ignored"},
	}

	records := RecordsFromRows(header, rows)

	require.Len(t, records, 3)
	assert.Equal(t, "John Smith", records[0][model.FieldDonorName])
	assert.Equal(t, "1234", records[0][model.FieldCheckNumber])

	_, hasCheck := records[1][model.FieldCheckNumber]
	assert.False(t, hasCheck)

	assert.Len(t, records[2], 3)
}

func TestRecordsFromRowsTrimsCells(t *testing.T) {
	records := RecordsFromRows(
		[]string{"Donor Name"},
		[][]string{{"  John Smith  "}},
	)

	require.Len(t, records, 1)
	assert.Equal(t, "John Smith", records[0][model.FieldDonorName])
}
