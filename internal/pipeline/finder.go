package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/event-finder/internal/config"
	"github.com/sells-group/event-finder/internal/cost"
	"github.com/sells-group/event-finder/internal/model"
	"github.com/sells-group/event-finder/pkg/anthropic"
)

// Finder runs the full discovery pipeline: query generation, concurrent
// search fan-out, batched extraction, and dedupe of the merged results.
type Finder struct {
	searcher *Searcher
	llm      anthropic.Client
	cfg      *config.Config
	intents  []Intent
	costs    *cost.Tracker
	now      func() time.Time
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithIntents replaces the built-in intent table.
func WithIntents(intents []Intent) FinderOption {
	return func(f *Finder) {
		f.intents = intents
	}
}

// WithNow overrides the clock, used by tests for deterministic years and
// past-date filtering.
func WithNow(now func() time.Time) FinderOption {
	return func(f *Finder) {
		f.now = now
	}
}

// NewFinder builds a Finder with the default intent table and wall clock.
func NewFinder(searcher *Searcher, llm anthropic.Client, cfg *config.Config, opts ...FinderOption) *Finder {
	f := &Finder{
		searcher: searcher,
		llm:      llm,
		cfg:      cfg,
		intents:  DefaultIntents(),
		costs:    cost.NewTracker(cost.NewCalculator(cost.DefaultRates())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// today returns the current calendar date at midnight UTC.
func (f *Finder) today() time.Time {
	y, m, d := f.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Find discovers upcoming speaking engagements for the requested subject.
// Invalid parameters return an error wrapping model.ErrInvalidInput; search
// and extraction failures degrade to an empty list rather than an error.
func (f *Finder) Find(ctx context.Context, req model.FindRequest) ([]model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := f.now()
	queries := GenerateQueries(f.intents, req.Subject, req.EventType, f.cfg.Search.Targeted, f.now())
	zap.L().Info("find: starting",
		zap.String("subject", req.Subject),
		zap.String("event_type", string(req.EventType)),
		zap.Int("queries", len(queries)),
	)

	results := f.searcher.Search(ctx, queries)
	f.costs.AddSearch(len(results))
	if len(results) == 0 {
		zap.L().Info("find: no search results", zap.String("subject", req.Subject))
		return []model.Event{}, nil
	}

	events := f.ExtractInBatches(ctx, req.Subject, results, req.EventType, req.Sort)
	if events == nil {
		events = []model.Event{}
	}

	inToks, outToks := f.costs.Tokens()
	zap.L().Info("find: finished",
		zap.String("subject", req.Subject),
		zap.Int("sources", len(results)),
		zap.Int("events", len(events)),
		zap.Int("input_tokens", inToks),
		zap.Int("output_tokens", outToks),
		zap.Float64("est_cost_usd", f.costs.Total()),
		zap.Duration("elapsed", f.now().Sub(start)),
	)
	return events, nil
}
