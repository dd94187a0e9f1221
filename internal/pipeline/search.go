package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/event-finder/internal/config"
	"github.com/sells-group/event-finder/internal/model"
)

// Searcher fans a query set out across a bounded worker pool against the
// primary search provider, falling back per query to the secondary provider.
type Searcher struct {
	primary  SearchProvider
	fallback SearchProvider // optional
	limiter  *rate.Limiter  // optional, shared across workers
	cfg      config.SearchConfig
}

// NewSearcher creates a Searcher. fallback may be nil.
func NewSearcher(primary, fallback SearchProvider, cfg config.SearchConfig) *Searcher {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Searcher{
		primary:  primary,
		fallback: fallback,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// Search executes every query concurrently and returns the merged results.
// It never returns an error: individual query failures and the overall
// deadline only shrink the result set. Each result carries the query and
// provider it came from. Result order is completion order.
func (s *Searcher) Search(ctx context.Context, queries []model.SearchQuery) []model.RawResult {
	if len(queries) == 0 {
		return nil
	}

	deadline := s.cfg.Timeout()
	if deadline <= 0 {
		deadline = 20 * time.Second
	}
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	workers := s.cfg.Workers
	if workers <= 0 || workers > len(queries) {
		workers = len(queries)
	}

	zap.L().Info("search: starting fan-out",
		zap.Int("queries", len(queries)),
		zap.Int("workers", workers),
	)

	var mu sync.Mutex
	var results []model.RawResult

	var g errgroup.Group
	g.SetLimit(workers)

	for _, q := range queries {
		q := q
		g.Go(func() error {
			found := s.searchOne(searchCtx, q)
			if len(found) == 0 {
				return nil
			}
			mu.Lock()
			results = append(results, found...)
			mu.Unlock()
			return nil
		})
	}

	// Wait for all workers, but only until the stage deadline: queries still
	// outstanding are abandoned and their late results discarded.
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-searchCtx.Done():
		zap.L().Warn("search: deadline reached, returning partial results",
			zap.Duration("deadline", deadline),
		)
	}

	mu.Lock()
	out := make([]model.RawResult, len(results))
	copy(out, results)
	mu.Unlock()

	zap.L().Info("search: fan-out finished", zap.Int("results", len(out)))
	return out
}

// searchOne runs one query against the primary provider with the fallback
// chain. Errors are swallowed: a failed query contributes nothing.
func (s *Searcher) searchOne(ctx context.Context, q model.SearchQuery) []model.RawResult {
	start := time.Now()

	callCtx := ctx
	if pt := s.cfg.ProviderTimeout(); pt > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, pt)
		defer cancel()
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(callCtx); err != nil {
			return nil
		}
	}

	found, err := s.callProvider(callCtx, s.primary, q)
	if err != nil && s.fallback != nil {
		zap.L().Debug("search: primary provider failed, trying fallback",
			zap.String("query", q.Text),
			zap.Error(err),
		)
		found, err = s.callProvider(callCtx, s.fallback, q)
	}
	if err != nil {
		zap.L().Warn("search: query failed",
			zap.String("intent", q.Intent),
			zap.String("query", q.Text),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil
	}

	if len(found) == 0 {
		zap.L().Info("search: no results", zap.String("query", q.Text))
		return nil
	}

	zap.L().Info("search: query done",
		zap.String("intent", q.Intent),
		zap.Int("results", len(found)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return found
}

func (s *Searcher) callProvider(ctx context.Context, p SearchProvider, q model.SearchQuery) ([]model.RawResult, error) {
	found, err := p.Search(ctx, q.Text, s.cfg.Limit)
	if err != nil {
		return nil, err
	}
	// Tag provenance for the prioritizer and dedupe diagnostics.
	for i := range found {
		found[i].Query = q.Text
		found[i].Provider = p.Name()
	}
	return found, nil
}
