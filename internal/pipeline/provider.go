package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/event-finder/internal/model"
	"github.com/sells-group/event-finder/pkg/firecrawl"
	"github.com/sells-group/event-finder/pkg/jina"
)

// SearchProvider executes one web search and returns results with page
// content. An empty slice with a nil error is the "no results" signal.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]model.RawResult, error)
}

// FirecrawlProvider adapts a Firecrawl client as a SearchProvider.
type FirecrawlProvider struct {
	client firecrawl.Client
}

// NewFirecrawlProvider creates a FirecrawlProvider from a Firecrawl client.
func NewFirecrawlProvider(client firecrawl.Client) *FirecrawlProvider {
	return &FirecrawlProvider{client: client}
}

// Name implements SearchProvider.
func (p *FirecrawlProvider) Name() string { return "firecrawl" }

// Search runs a Firecrawl search with page content fetching enabled.
func (p *FirecrawlProvider) Search(ctx context.Context, query string, limit int) ([]model.RawResult, error) {
	resp, err := p.client.Search(ctx, firecrawl.SearchRequest{
		Query:         query,
		Limit:         limit,
		ScrapeOptions: &firecrawl.ScrapeOptions{Formats: []string{"markdown"}},
	})
	if err != nil {
		if firecrawl.IsNoResults(err) {
			return nil, nil
		}
		return nil, err
	}
	if !resp.Success {
		return nil, eris.New("firecrawl: search not successful")
	}

	results := make([]model.RawResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		results = append(results, model.RawResult{
			URL:      d.URL,
			Markdown: d.Markdown,
		})
	}
	return results, nil
}

// JinaProvider adapts a Jina search client as a SearchProvider.
type JinaProvider struct {
	client jina.Client
}

// NewJinaProvider creates a JinaProvider from a Jina client.
func NewJinaProvider(client jina.Client) *JinaProvider {
	return &JinaProvider{client: client}
}

// Name implements SearchProvider.
func (p *JinaProvider) Name() string { return "jina" }

// Search runs a Jina web search. The limit is advisory: Jina returns a fixed
// result page, so excess results are trimmed client-side.
func (p *JinaProvider) Search(ctx context.Context, query string, limit int) ([]model.RawResult, error) {
	resp, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	data := resp.Data
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}

	results := make([]model.RawResult, 0, len(data))
	for _, d := range data {
		results = append(results, model.RawResult{
			URL:      d.URL,
			Markdown: d.Content,
		})
	}
	return results, nil
}
