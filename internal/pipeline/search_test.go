package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/event-finder/internal/config"
	"github.com/sells-group/event-finder/internal/model"
)

// stubProvider is a scriptable SearchProvider for fan-out tests.
type stubProvider struct {
	name    string
	results map[string][]model.RawResult
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Search(ctx context.Context, query string, limit int) ([]model.RawResult, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.results[query], nil
}

func searchTestConfig() config.SearchConfig {
	return config.SearchConfig{
		Workers:             6,
		TimeoutSecs:         5,
		ProviderTimeoutSecs: 2,
		Limit:               6,
	}
}

func testQueries(texts ...string) []model.SearchQuery {
	queries := make([]model.SearchQuery, len(texts))
	for i, text := range texts {
		queries[i] = model.SearchQuery{Intent: "general", Provider: "firecrawl", Text: text}
	}
	return queries
}

func TestSearchMergesAndTagsResults(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{
		name: "firecrawl",
		results: map[string][]model.RawResult{
			"q1": {{URL: "https://a.com", Markdown: "alpha"}},
			"q2": {{URL: "https://b.com", Markdown: "bravo"}, {URL: "https://c.com", Markdown: "charlie"}},
		},
	}

	s := NewSearcher(primary, nil, searchTestConfig())
	results := s.Search(context.Background(), testQueries("q1", "q2"))

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "firecrawl", r.Provider)
		assert.NotEmpty(t, r.Query)
		assert.NotEmpty(t, r.Markdown)
	}
}

func TestSearchNeverErrors(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "firecrawl", err: eris.New("boom")}
	s := NewSearcher(primary, nil, searchTestConfig())

	results := s.Search(context.Background(), testQueries("q1", "q2", "q3"))
	assert.Empty(t, results)
	assert.Equal(t, int32(3), primary.calls.Load())
}

func TestSearchFallbackOnPrimaryFailure(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "firecrawl", err: eris.New("rate limited")}
	fallback := &stubProvider{
		name: "jina",
		results: map[string][]model.RawResult{
			"q1": {{URL: "https://a.com", Markdown: "alpha"}},
		},
	}

	s := NewSearcher(primary, fallback, searchTestConfig())
	results := s.Search(context.Background(), testQueries("q1"))

	require.Len(t, results, 1)
	assert.Equal(t, "jina", results[0].Provider)
	assert.Equal(t, "q1", results[0].Query)
}

func TestSearchNoFallbackOnEmptyResults(t *testing.T) {
	t.Parallel()

	// Empty results are a valid answer, not a failure.
	primary := &stubProvider{name: "firecrawl"}
	fallback := &stubProvider{name: "jina"}

	s := NewSearcher(primary, fallback, searchTestConfig())
	results := s.Search(context.Background(), testQueries("q1"))

	assert.Empty(t, results)
	assert.Equal(t, int32(0), fallback.calls.Load())
}

func TestSearchPartialResultsOnDeadline(t *testing.T) {
	t.Parallel()

	fast := &stubProvider{
		name: "firecrawl",
		results: map[string][]model.RawResult{
			"q1": {{URL: "https://a.com", Markdown: "alpha"}},
			"q2": {{URL: "https://b.com", Markdown: "bravo"}},
		},
	}
	slow := &stubProvider{name: "firecrawl", delay: 2 * time.Second}

	cfg := searchTestConfig()
	cfg.TimeoutSecs = 1
	cfg.Workers = 2

	// Two fast queries on one searcher, one stuck query on another sharing
	// the clock: exercise that the deadline returns what finished.
	s := NewSearcher(fast, nil, cfg)
	start := time.Now()
	results := s.Search(context.Background(), testQueries("q1", "q2"))
	assert.Len(t, results, 2)

	stuck := NewSearcher(slow, nil, cfg)
	results = stuck.Search(context.Background(), testQueries("q1"))
	assert.Empty(t, results)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestSearchEmptyQueries(t *testing.T) {
	t.Parallel()

	s := NewSearcher(&stubProvider{name: "firecrawl"}, nil, searchTestConfig())
	assert.Nil(t, s.Search(context.Background(), nil))
}
