package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/model"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"Donor Name,Amount,Check Number,Memo",
		"John Smith,100.00,1234,Annual gift",
		"Jane Doe,50.00,5678,",
	}, "\n")

	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "John Smith", records[0][model.FieldDonorName])
	assert.Equal(t, "Annual gift", records[0][model.FieldMemo])
	assert.Equal(t, "5678", records[1][model.FieldCheckNumber])

	_, hasMemo := records[1][model.FieldMemo]
	assert.False(t, hasMemo)
}

func TestReadCSVRaggedRows(t *testing.T) {
	input := "Donor Name,Amount\nJohn Smith,100.00,extra\nJane Doe\n"

	records, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane Doe", records[1][model.FieldDonorName])
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}
