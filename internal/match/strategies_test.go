package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/model"
)

func entries(names ...string) []model.DirectoryEntry {
	out := make([]model.DirectoryEntry, len(names))
	for i, n := range names {
		out[i] = model.DirectoryEntry{ID: n, DisplayName: n}
	}
	return out
}

func stopwordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(DefaultStopwords))
	for _, w := range DefaultStopwords {
		set[w] = struct{}{}
	}
	return set
}

func TestExactMatch(t *testing.T) {
	pool := entries("John Smith", "Jane Doe")

	got := exactMatch("john smith", pool)
	require.NotNil(t, got)
	assert.Equal(t, "John Smith", got.DisplayName)

	assert.Nil(t, exactMatch("John", pool))
}

func TestPartialMatch(t *testing.T) {
	pool := entries("The Smith Family Foundation")

	got := partialMatch("Smith Family", pool)
	require.NotNil(t, got)

	// Needle containing the entry name also matches.
	got = partialMatch("The Smith Family Foundation of Ohio", pool)
	require.NotNil(t, got)

	// Short needles are skipped.
	assert.Nil(t, partialMatch("Sm", pool))
}

func TestReversalMatch(t *testing.T) {
	pool := entries("Smith, John")

	got := reversalMatch("John Smith", pool)
	require.NotNil(t, got)

	pool = entries("John Smith")
	got = reversalMatch("Smith, John", pool)
	require.NotNil(t, got)

	// Plain two-token swap.
	got = reversalMatch("Smith John", pool)
	require.NotNil(t, got)

	assert.Nil(t, reversalMatch("Jane Doe", pool))
}

func TestTokenMatchRanksByLongestSharedToken(t *testing.T) {
	pool := entries("The Johnson Fund", "Johnson and Abernathy LLC")

	got := tokenMatch("Abernathy Johnson Trust", pool, stopwordSet())
	require.NotNil(t, got)
	assert.Equal(t, "Johnson and Abernathy LLC", got.DisplayName)
}

func TestTokenMatchIgnoresStopwords(t *testing.T) {
	pool := entries("The Foundation Inc")

	// Every needle token is a stopword, so nothing significant remains.
	assert.Nil(t, tokenMatch("The Company Foundation", pool, stopwordSet()))
}

func TestEmailDomainMatch(t *testing.T) {
	pool := entries("Smith Foundation", "Acme Co")

	got := emailDomainMatch("john@smithfoundation.org", pool)
	require.NotNil(t, got)
	assert.Equal(t, "Smith Foundation", got.DisplayName)

	// Short domain labels are too noisy to match.
	assert.Nil(t, emailDomainMatch("a@ac.me", pool))
	assert.Nil(t, emailDomainMatch("not-an-email", pool))
}

func TestPhoneMatch(t *testing.T) {
	pool := []model.DirectoryEntry{
		{ID: "c1", Phones: []string{"(555) 123-4567"}},
		{ID: "c2", Phones: []string{"555.987.6543"}},
	}

	got := phoneMatch("+1 555 987 6543", pool)
	require.NotNil(t, got)
	assert.Equal(t, "c2", got.ID)

	// Fewer than seven digits never matches.
	assert.Nil(t, phoneMatch("123456", pool))
}

func TestLastDigits(t *testing.T) {
	assert.Equal(t, "1234567", lastDigits("+1 (555) 123-4567", 7))
	assert.Equal(t, "4567", lastDigits("4567", 7))
	assert.Equal(t, "", lastDigits("no digits", 7))
}
