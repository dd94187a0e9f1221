package cost

import "sync"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Jina      JinaRate             `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlRate        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// JinaRate holds Jina search pricing.
type JinaRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// FirecrawlRate holds Firecrawl plan pricing, amortized per credit.
type FirecrawlRate struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Jina computes the cost for Jina search token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// FirecrawlSearch computes the amortized cost of a search call, one credit
// per returned page.
func (c *Calculator) FirecrawlSearch(pages int) float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	perCredit := c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
	return float64(pages) * perCredit
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		Jina:      JinaRate{PerMTok: 0.02},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}

// Tracker accumulates spend across one pipeline run. Safe for concurrent use
// by the extraction workers.
type Tracker struct {
	calc *Calculator

	mu      sync.Mutex
	total   float64
	inToks  int
	outToks int
	pages   int
}

// NewTracker creates a Tracker using the given calculator.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc}
}

// AddClaude records one Claude call's token usage.
func (t *Tracker) AddClaude(model string, input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inToks += input
	t.outToks += output
	t.total += t.calc.Claude(model, input, output)
}

// AddSearch records returned search pages.
func (t *Tracker) AddSearch(pages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pages += pages
	t.total += t.calc.FirecrawlSearch(pages)
}

// Total returns the accumulated spend in USD.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Tokens returns accumulated input and output token counts.
func (t *Tracker) Tokens() (input, output int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inToks, t.outToks
}
