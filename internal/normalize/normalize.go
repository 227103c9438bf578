// Package normalize cleans individual raw records before deduplication:
// casing, numeric identifiers, amounts, and postal codes.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/donation-cli/internal/model"
)

var (
	zipPlusFour = regexp.MustCompile(`^\d{5}-\d{4}$`)
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	amountJunk  = strings.NewReplacer("$", "", ",", "", " ", "")
)

// Record returns a normalized copy of the raw record. The input is not
// modified and unparseable values pass through unchanged.
func Record(r model.RawRecord) model.RawRecord {
	out := make(model.RawRecord, len(r))
	for key, val := range r {
		v := strings.TrimSpace(val)
		if isAllUpper(v) {
			v = titleCase(v)
		}
		switch key {
		case model.FieldCheckNumber:
			v = CheckNumber(v)
		case model.FieldZip:
			v = Zip(v)
		case model.FieldAmount:
			v = Amount(v)
		}
		out[key] = v
	}
	return out
}

// CheckNumber strips leading zeros from check-number-like values longer than
// four digits. Values of four digits or fewer keep their zeros, which may be
// significant.
func CheckNumber(v string) string {
	if len(v) <= 4 || !digitsOnly.MatchString(v) {
		return v
	}
	trimmed := strings.TrimLeft(v, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// Zip truncates a ZIP+4 code (NNNNN-NNNN) to its leading five digits.
// Leading zeros are preserved exactly.
func Zip(v string) string {
	if zipPlusFour.MatchString(v) {
		return v[:5]
	}
	return v
}

// Amount rewrites a dollar amount to a canonical two-decimal form, stripping
// currency symbols and thousands separators. Unparseable values pass through.
func Amount(v string) string {
	cleaned := amountJunk.Replace(v)
	if cleaned == "" {
		return v
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// isAllUpper reports whether v contains at least one letter and no lowercase
// letters. Mixed-case values are assumed intentional and left alone.
func isAllUpper(v string) bool {
	hasLetter := false
	for _, r := range v {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// titleCase capitalizes the first letter of each whitespace-delimited token
// and lowercases the remainder.
func titleCase(v string) string {
	return cases.Title(language.AmericanEnglish).String(strings.ToLower(v))
}
