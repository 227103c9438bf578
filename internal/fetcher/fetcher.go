// Package fetcher retrieves donation batch files from remote sources and
// parses them into raw records.
package fetcher

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/sells-group/donation-cli/internal/model"
)

// Fetcher downloads a remote batch file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// headerAliases maps common bank and CRM export column names to canonical
// record field keys. Comparison is case-insensitive after squashing
// punctuation.
var headerAliases = map[string]string{
	"donorname":     model.FieldDonorName,
	"donor":         model.FieldDonorName,
	"name":          model.FieldDonorName,
	"payername":     model.FieldDonorName,
	"remitter":      model.FieldDonorName,
	"amount":        model.FieldAmount,
	"giftamount":    model.FieldAmount,
	"checkamount":   model.FieldAmount,
	"checknumber":   model.FieldCheckNumber,
	"checkno":       model.FieldCheckNumber,
	"check":         model.FieldCheckNumber,
	"serialnumber":  model.FieldCheckNumber,
	"checkdate":     model.FieldCheckDate,
	"depositdate":   model.FieldDepositDate,
	"memo":          model.FieldMemo,
	"note":          model.FieldMemo,
	"address":       model.FieldAddressLine1,
	"addressline1":  model.FieldAddressLine1,
	"street":        model.FieldAddressLine1,
	"city":          model.FieldCity,
	"state":         model.FieldState,
	"zip":           model.FieldZip,
	"zipcode":       model.FieldZip,
	"postalcode":    model.FieldZip,
	"email":         model.FieldEmail,
	"emailaddress":  model.FieldEmail,
	"phone":         model.FieldPhone,
	"phonenumber":   model.FieldPhone,
	"customerhint":  model.FieldDirectoryHint,
	"customername":  model.FieldDirectoryHint,
	"accountname":   model.FieldDirectoryHint,
	"sourceid":      model.FieldSourceID,
	"transactionid": model.FieldSourceID,
	"itemid":        model.FieldSourceID,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// CanonicalField resolves a raw column header to a record field key. Unknown
// headers are kept, lowercased with punctuation collapsed to underscores.
func CanonicalField(header string) string {
	squashed := nonAlnum.ReplaceAllString(strings.ToLower(header), "")
	if key, ok := headerAliases[squashed]; ok {
		return key
	}
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(header), "_"), "_")
}

// RecordsFromRows converts a header row plus data rows into raw records.
// Blank rows and rows with no non-empty cell are skipped. Cells past the
// header width are ignored.
func RecordsFromRows(header []string, rows [][]string) []model.RawRecord {
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = CanonicalField(h)
	}

	records := make([]model.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := model.RawRecord{}
		empty := true
		for i, cell := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			rec[fields[i]] = cell
			empty = false
		}
		if !empty {
			records = append(records, rec)
		}
	}
	return records
}
