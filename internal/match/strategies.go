package match

import (
	"strings"

	"github.com/sells-group/donation-cli/internal/model"
)

// Strategy names, in cascade order. Kept as stable identifiers for audit
// display and logging.
const (
	StrategyExact       = "exact"
	StrategyPartial     = "partial"
	StrategyReversal    = "reversal"
	StrategyToken       = "token"
	StrategyEmailDomain = "email_domain"
	StrategyPhone       = "phone"
)

// DefaultStopwords are dropped before significant-token matching: articles,
// conjunctions, and corporate/organizational suffixes. The list is a starting
// point and can be overridden through configuration.
var DefaultStopwords = []string{
	"a", "an", "and", "of", "or", "the",
	"co", "company", "corp", "corporation", "foundation", "fund",
	"inc", "incorporated", "llc", "llp", "ltd", "trust",
	"mr", "mrs", "ms", "dr",
}

// exactMatch returns the first entry whose display name equals the needle,
// case-insensitively.
func exactMatch(needle string, entries []model.DirectoryEntry) *model.DirectoryEntry {
	for i := range entries {
		if strings.EqualFold(needle, entries[i].DisplayName) {
			return &entries[i]
		}
	}
	return nil
}

// partialMatch returns the first entry whose display name contains the needle
// or is contained by it. Very short needles are skipped to avoid noise.
func partialMatch(needle string, entries []model.DirectoryEntry) *model.DirectoryEntry {
	n := strings.ToLower(strings.TrimSpace(needle))
	if len(n) < 3 {
		return nil
	}
	for i := range entries {
		name := strings.ToLower(entries[i].DisplayName)
		if name == "" {
			continue
		}
		if strings.Contains(name, n) || strings.Contains(n, name) {
			return &entries[i]
		}
	}
	return nil
}

// reversalMatch handles "Last, First" vs "First Last" token-swap equivalence.
func reversalMatch(needle string, entries []model.DirectoryEntry) *model.DirectoryEntry {
	variants := nameVariants(needle)
	for i := range entries {
		for _, entryVariant := range nameVariants(entries[i].DisplayName) {
			for _, v := range variants {
				if v != "" && v == entryVariant {
					return &entries[i]
				}
			}
		}
	}
	return nil
}

// nameVariants returns lowercase forms of a personal name: as written,
// comma-swapped, and two-token-swapped.
func nameVariants(name string) []string {
	n := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if n == "" {
		return nil
	}
	variants := []string{n}

	if last, first, ok := strings.Cut(n, ","); ok {
		variants = append(variants, strings.TrimSpace(first)+" "+strings.TrimSpace(last))
	} else if tokens := strings.Fields(n); len(tokens) == 2 {
		variants = append(variants, tokens[1]+" "+tokens[0])
	}
	return variants
}

// tokenMatch intersects the needle's significant tokens with each entry's and
// ranks candidates by the longest shared token. Ties keep the earliest entry.
func tokenMatch(needle string, entries []model.DirectoryEntry, stopwords map[string]struct{}) *model.DirectoryEntry {
	needleTokens := significantTokens(needle, stopwords)
	if len(needleTokens) == 0 {
		return nil
	}

	best := -1
	bestLen := 0
	for i := range entries {
		entryTokens := significantTokens(entries[i].DisplayName, stopwords)
		for tok := range needleTokens {
			if _, shared := entryTokens[tok]; shared && len(tok) > bestLen {
				best = i
				bestLen = len(tok)
			}
		}
	}
	if best < 0 {
		return nil
	}
	return &entries[best]
}

// significantTokens lowercases, splits on non-alphanumerics, and drops
// stopwords and single characters.
func significantTokens(s string, stopwords map[string]struct{}) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isAlphaNum(r)
	}) {
		if len(tok) < 2 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// emailDomainMatch extracts the domain label of an email address (the
// "smithfoundation" of john@smithfoundation.org) and matches it as a
// substring of a directory name with spacing and punctuation removed.
func emailDomainMatch(email string, entries []model.DirectoryEntry) *model.DirectoryEntry {
	label := emailDomainLabel(email)
	if len(label) < 4 {
		return nil
	}
	for i := range entries {
		if strings.Contains(squash(entries[i].DisplayName), label) {
			return &entries[i]
		}
	}
	return nil
}

func emailDomainLabel(email string) string {
	_, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return label
}

// phoneMatch compares the last seven digits of the record's phone number
// against each entry's phone numbers, digits only.
func phoneMatch(phone string, entries []model.DirectoryEntry) *model.DirectoryEntry {
	needle := lastDigits(phone, 7)
	if len(needle) < 7 {
		return nil
	}
	for i := range entries {
		for _, p := range entries[i].Phones {
			if lastDigits(p, 7) == needle {
				return &entries[i]
			}
		}
	}
	return nil
}

// lastDigits returns the trailing n digits of s after stripping everything else.
func lastDigits(s string, n int) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > n {
		return digits[len(digits)-n:]
	}
	return digits
}

// squash lowercases and strips everything but letters and digits.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if isAlphaNum(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
