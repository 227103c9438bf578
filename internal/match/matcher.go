package match

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/resilience"
)

// Verdict is the verification judge's decision on one (record, candidate) pair.
type Verdict struct {
	Valid                      bool `json:"valid"`
	AddressMateriallyDifferent bool `json:"address_materially_different"`
}

// Judge validates a non-exact candidate against the record it was matched to.
type Judge interface {
	Verify(ctx context.Context, record model.RawRecord, candidate model.DirectoryEntry) (Verdict, error)
}

// Config tunes the matching pass.
type Config struct {
	// Stopwords overrides DefaultStopwords for significant-token matching.
	Stopwords []string
	// LookupConcurrency bounds parallel directory lookups. Default 8.
	LookupConcurrency int
	// RecordConcurrency bounds parallel per-record verification. Default 4.
	RecordConcurrency int
	// JudgeRetry controls retries of judge calls before falling back.
	JudgeRetry resilience.RetryConfig
}

// Matcher annotates each merged record in a batch with a MatchResult.
type Matcher struct {
	cache             *DirectoryCache
	judge             Judge
	stopwords         map[string]struct{}
	lookupConcurrency int
	recordConcurrency int
	judgeRetry        resilience.RetryConfig
}

// NewMatcher builds a Matcher over the given cache and judge.
func NewMatcher(cache *DirectoryCache, judge Judge, cfg Config) *Matcher {
	words := cfg.Stopwords
	if len(words) == 0 {
		words = DefaultStopwords
	}
	stopwords := make(map[string]struct{}, len(words))
	for _, w := range words {
		stopwords[CacheKey(w)] = struct{}{}
	}

	lookupConcurrency := cfg.LookupConcurrency
	if lookupConcurrency <= 0 {
		lookupConcurrency = 8
	}
	recordConcurrency := cfg.RecordConcurrency
	if recordConcurrency <= 0 {
		recordConcurrency = 4
	}
	retry := cfg.JudgeRetry
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetryConfig()
	}

	return &Matcher{
		cache:             cache,
		judge:             judge,
		stopwords:         stopwords,
		lookupConcurrency: lookupConcurrency,
		recordConcurrency: recordConcurrency,
		judgeRetry:        retry,
	}
}

// Match runs the single global matching pass. It takes the complete
// deduplicated batch as its sole input so matching cannot be invoked on a
// partial set. A failed lookup or verification downgrades that record to
// StatusNew; the batch always completes. Results align with batch indices.
func (m *Matcher) Match(ctx context.Context, batch []model.MergedRecord) []model.MatchResult {
	lookups := make([][]string, len(batch))
	distinct := make(map[string]string) // cache key → original query
	for i, rec := range batch {
		lookups[i] = recordLookups(rec.Record)
		for _, q := range lookups[i] {
			distinct[CacheKey(q)] = q
		}
	}

	resolved, failed := m.bulkResolve(ctx, distinct)

	results := make([]model.MatchResult, len(batch))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.recordConcurrency)
	for i := range batch {
		g.Go(func() error {
			results[i] = m.matchRecord(gCtx, batch[i].Record, lookups[i], resolved)
			if !results[i].Degraded {
				for _, q := range lookups[i] {
					if _, bad := failed[CacheKey(q)]; bad {
						results[i].Degraded = true
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; records fail open individually

	return results
}

// bulkResolve queries the directory once per distinct lookup string across the
// whole batch, populating the cache with bounded concurrency. The second
// return value holds the cache keys whose lookups failed after retries.
func (m *Matcher) bulkResolve(ctx context.Context, distinct map[string]string) (map[string][]model.DirectoryEntry, map[string]struct{}) {
	resolved := make(map[string][]model.DirectoryEntry, len(distinct))
	failed := make(map[string]struct{})
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.lookupConcurrency)
	for key, query := range distinct {
		g.Go(func() error {
			entries, err := resilience.DoVal(gCtx, m.judgeRetry, func(ctx context.Context) ([]model.DirectoryEntry, error) {
				return m.cache.Resolve(ctx, query)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Fail open: the records relying on this lookup fall back to New.
				zap.L().Warn("match: directory lookup failed",
					zap.String("query", query),
					zap.Error(err),
				)
				failed[key] = struct{}{}
				return nil
			}
			resolved[key] = entries
			return nil
		})
	}
	_ = g.Wait()

	return resolved, failed
}

// recordLookups gathers a record's lookup strings in priority order:
// explicit directory hint, payer display name, email, phone.
func recordLookups(rec model.RawRecord) []string {
	var out []string
	seen := make(map[string]struct{}, 4)
	for _, v := range []string{
		rec.Get(model.FieldDirectoryHint),
		rec.Get(model.FieldDonorName),
		rec.Get(model.FieldEmail),
		rec.Get(model.FieldPhone),
	} {
		if v == "" {
			continue
		}
		key := CacheKey(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// matchRecord applies the strategy cascade to one record against the entries
// resolved for its own lookup strings.
func (m *Matcher) matchRecord(ctx context.Context, rec model.RawRecord, queries []string, resolved map[string][]model.DirectoryEntry) model.MatchResult {
	pool := candidatePool(queries, resolved)
	if len(pool) == 0 {
		return model.MatchResult{Status: model.StatusNew}
	}

	nameNeedles := nonEmpty(rec.Get(model.FieldDirectoryHint), rec.Get(model.FieldDonorName))
	email := rec.Get(model.FieldEmail)
	phone := rec.Get(model.FieldPhone)

	type step struct {
		strategy string
		find     func() *model.DirectoryEntry
	}
	steps := []step{
		{StrategyExact, func() *model.DirectoryEntry { return firstByNeedle(nameNeedles, pool, exactMatch) }},
		{StrategyPartial, func() *model.DirectoryEntry { return firstByNeedle(nameNeedles, pool, partialMatch) }},
		{StrategyReversal, func() *model.DirectoryEntry { return firstByNeedle(nameNeedles, pool, reversalMatch) }},
		{StrategyToken, func() *model.DirectoryEntry {
			return firstByNeedle(nameNeedles, pool, func(n string, entries []model.DirectoryEntry) *model.DirectoryEntry {
				return tokenMatch(n, entries, m.stopwords)
			})
		}},
		{StrategyEmailDomain, func() *model.DirectoryEntry { return emailDomainMatch(email, pool) }},
		{StrategyPhone, func() *model.DirectoryEntry { return phoneMatch(phone, pool) }},
	}

	rejected := make(map[string]struct{})
	degraded := false
	for _, s := range steps {
		candidate := s.find()
		if candidate == nil {
			continue
		}
		if _, done := rejected[candidate.ID]; done {
			continue
		}

		// Exact display-name matches skip verification; the reconciler still
		// evaluates the address independently.
		if s.strategy == StrategyExact {
			return model.MatchResult{Status: model.StatusMatched, Entry: candidate, Strategy: s.strategy}
		}

		verdict, err := resilience.DoVal(ctx, m.judgeRetry, func(ctx context.Context) (Verdict, error) {
			return m.judge.Verify(ctx, rec, *candidate)
		})
		if err != nil {
			zap.L().Warn("match: verification failed, discarding candidate",
				zap.String("strategy", s.strategy),
				zap.String("candidate_id", candidate.ID),
				zap.Error(err),
			)
			rejected[candidate.ID] = struct{}{}
			degraded = true
			continue
		}
		if !verdict.Valid {
			rejected[candidate.ID] = struct{}{}
			continue
		}

		status := model.StatusMatched
		if verdict.AddressMateriallyDifferent {
			status = model.StatusAddressReview
		}
		return model.MatchResult{Status: status, Entry: candidate, Strategy: s.strategy, Degraded: degraded}
	}

	return model.MatchResult{Status: model.StatusNew, Degraded: degraded}
}

// candidatePool unions the entries resolved for the record's lookup strings,
// deduplicated by directory id, in lookup priority order.
func candidatePool(queries []string, resolved map[string][]model.DirectoryEntry) []model.DirectoryEntry {
	var pool []model.DirectoryEntry
	seen := make(map[string]struct{})
	for _, q := range queries {
		for _, e := range resolved[CacheKey(q)] {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			pool = append(pool, e)
		}
	}
	return pool
}

// firstByNeedle tries each needle in order against the pool.
func firstByNeedle(needles []string, pool []model.DirectoryEntry, fn func(string, []model.DirectoryEntry) *model.DirectoryEntry) *model.DirectoryEntry {
	for _, n := range needles {
		if e := fn(n, pool); e != nil {
			return e
		}
	}
	return nil
}

func nonEmpty(vals ...string) []string {
	var out []string
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
