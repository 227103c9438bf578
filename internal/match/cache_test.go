package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/donation-cli/internal/model"
)

// stubSearcher counts calls and returns canned results per lowercased query.
type stubSearcher struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string][]model.DirectoryEntry
	err     error
}

func newStubSearcher() *stubSearcher {
	return &stubSearcher{
		calls:   make(map[string]int),
		results: make(map[string][]model.DirectoryEntry),
	}
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := CacheKey(query)
	s.calls[key]++
	if s.err != nil {
		return nil, s.err
	}
	return s.results[key], nil
}

func (s *stubSearcher) callCount(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[CacheKey(query)]
}

func TestResolveCachesByLowercasedKey(t *testing.T) {
	searcher := newStubSearcher()
	searcher.results["john smith"] = []model.DirectoryEntry{{ID: "c1", DisplayName: "John Smith"}}

	cache := NewDirectoryCache(searcher, time.Minute)

	first, err := cache.Resolve(context.Background(), "John Smith")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cache.Resolve(context.Background(), "JOHN SMITH")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, searcher.callCount("john smith"))
}

func TestResolveRefetchesAfterExpiry(t *testing.T) {
	searcher := newStubSearcher()
	now := time.Now()
	cache := NewDirectoryCache(searcher, time.Minute).WithNow(func() time.Time { return now })

	_, err := cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, searcher.callCount("acme"))

	now = now.Add(31 * time.Second)
	_, err = cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.callCount("acme"))
}

func TestResolveDoesNotCacheErrors(t *testing.T) {
	searcher := newStubSearcher()
	searcher.err = eris.New("directory down")

	cache := NewDirectoryCache(searcher, time.Minute)

	_, err := cache.Resolve(context.Background(), "acme")
	require.Error(t, err)

	searcher.mu.Lock()
	searcher.err = nil
	searcher.results["acme"] = []model.DirectoryEntry{{ID: "c2"}}
	searcher.mu.Unlock()

	entries, err := cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, searcher.callCount("acme"))
}

func TestResolveReturnsCopies(t *testing.T) {
	searcher := newStubSearcher()
	searcher.results["acme"] = []model.DirectoryEntry{{ID: "c1", DisplayName: "Acme"}}

	cache := NewDirectoryCache(searcher, time.Minute)

	first, err := cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	first[0].DisplayName = "mutated"

	second, err := cache.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", second[0].DisplayName)
}

func TestResolveConcurrentSameKeyFetchesOnce(t *testing.T) {
	searcher := newStubSearcher()
	cache := NewDirectoryCache(searcher, time.Minute)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Resolve(context.Background(), "Acme Fund")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, searcher.callCount("acme fund"))
}
