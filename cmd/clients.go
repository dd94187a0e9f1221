package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/event-finder/internal/pipeline"
	"github.com/sells-group/event-finder/pkg/anthropic"
	"github.com/sells-group/event-finder/pkg/firecrawl"
	"github.com/sells-group/event-finder/pkg/jina"
)

// initFinder wires providers, the LLM client and the intent table into a
// ready pipeline.
func initFinder() (*pipeline.Finder, error) {
	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.SearchBaseURL))
	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)

	searcher := pipeline.NewSearcher(
		pipeline.NewFirecrawlProvider(firecrawlClient),
		pipeline.NewJinaProvider(jinaClient),
		cfg.Search,
	)

	var opts []pipeline.FinderOption
	if cfg.Queries.IntentsFile != "" {
		intents, err := pipeline.LoadIntents(cfg.Queries.IntentsFile)
		if err != nil {
			return nil, eris.Wrap(err, "load intents file")
		}
		opts = append(opts, pipeline.WithIntents(intents))
	}

	return pipeline.NewFinder(searcher, anthropicClient, cfg, opts...), nil
}
