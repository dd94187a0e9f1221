package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/event-finder/internal/model"
)

// truncationReserve is the character allowance held back for the truncation
// marker when squeezing a final high-value source into the budget.
const truncationReserve = 400

// minResidualChars is the smallest remaining budget worth filling with a
// truncated source; below this the source is omitted instead.
const minResidualChars = 3000

// qualityIndicators are content tokens that suggest a page actually lists
// speakers rather than merely mentioning the subject.
var qualityIndicators = []string{"speaker", "presenter", "keynote", "featured"}

// aggregatorDomains are event-listing platforms scored above generic hits.
var aggregatorDomains = []string{"eventbrite", "meetup"}

// CombineContent assembles one text blob for an extraction call. With no
// budget (maxChars <= 0) every non-empty source is concatenated unbounded.
// With a budget, sources are ranked by priority and appended in descending
// order until the next block would overflow; a final high-value source may be
// included as a truncated prefix if enough residual budget remains, otherwise
// a one-line summary notes how many sources were omitted.
func CombineContent(results []model.RawResult, maxChars int, subject string, now time.Time) string {
	if maxChars <= 0 {
		return simpleCombine(results)
	}

	ranked := prioritizeSources(results, subject, now)

	var blocks []string
	totalChars := 0
	included := 0
	sourceTypes := make(map[string]bool)
	subjectMentions := 0
	subjectLower := strings.ToLower(subject)

	for _, r := range ranked {
		if strings.TrimSpace(r.Markdown) == "" {
			continue
		}

		srcType := sourceType(r.Query)
		block := fmt.Sprintf("Source: %s\nContent: %s\n---\n", r.Query, r.Markdown)
		hasMention := subject != "" && strings.Contains(strings.ToLower(r.Markdown), subjectLower)

		if totalChars+len(block) > maxChars && included > 0 {
			remaining := maxChars - totalChars - truncationReserve
			if remaining > minResidualChars && (hasMention || !sourceTypes[srcType]) {
				truncated := cutAtRune(r.Markdown, remaining)
				blocks = append(blocks,
					"Source: "+r.Query,
					fmt.Sprintf("Content: %s\n[SOURCE TRUNCATED FOR TOKEN LIMIT - Subject mentioned: %t]", truncated, hasMention),
					"---",
				)
				included++
				sourceTypes[srcType] = true
				if hasMention {
					subjectMentions++
				}
			} else {
				omitted := len(ranked) - included
				blocks = append(blocks, fmt.Sprintf(
					"\n[CONTENT OPTIMIZED FOR ACCURACY - %d additional sources omitted, %d sources with explicit subject mentions included]",
					omitted, subjectMentions,
				))
			}
			break
		}

		blocks = append(blocks, "Source: "+r.Query, "Content: "+r.Markdown, "---")
		totalChars += len(block)
		included++
		sourceTypes[srcType] = true
		if hasMention {
			subjectMentions++
		}
	}

	combined := strings.Join(blocks, "\n")
	zap.L().Debug("combine: budgeted content assembled",
		zap.Int("sources", len(ranked)),
		zap.Int("included", included),
		zap.Int("chars", len(combined)),
		zap.Int("source_types", len(sourceTypes)),
		zap.Int("subject_mentions", subjectMentions),
	)
	return combined
}

// simpleCombine concatenates all non-empty result bodies with per-source
// headers, unbounded.
func simpleCombine(results []model.RawResult) string {
	var blocks []string
	for _, r := range results {
		if strings.TrimSpace(r.Markdown) == "" {
			continue
		}
		query := r.Query
		if query == "" {
			query = "N/A"
		}
		blocks = append(blocks, "Source: "+query, "Content: "+r.Markdown, "---")
	}
	return strings.Join(blocks, "\n")
}

// prioritizeSources orders results by descending priority score, longer
// bodies first within a score. The input slice is not modified.
func prioritizeSources(results []model.RawResult, subject string, now time.Time) []model.RawResult {
	ranked := make([]model.RawResult, len(results))
	copy(ranked, results)

	scores := make(map[int]int, len(ranked))
	for i, r := range ranked {
		scores[i] = sourcePriority(r, subject, now)
	}

	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return len(ranked[idx[a]].Markdown) > len(ranked[idx[b]].Markdown)
	})

	out := make([]model.RawResult, len(ranked))
	for i, j := range idx {
		out[i] = ranked[j]
	}
	return out
}

// sourcePriority scores one result for relevance. Higher wins.
func sourcePriority(r model.RawResult, subject string, now time.Time) int {
	query := strings.ToLower(r.Query)
	pageURL := strings.ToLower(r.URL)
	content := strings.ToLower(r.Markdown)

	priority := 0

	// Explicit subject mention is the strongest accuracy signal.
	if subject != "" && strings.Contains(content, strings.ToLower(subject)) {
		priority += 10
	}

	switch {
	case strings.Contains(query, "official") || containsAny(pageURL, []string{".com/events", "/calendar", "/schedule"}):
		priority += 5
	case strings.Contains(query, "speaker bureau") || strings.Contains(query, "confirmed"):
		priority += 4
	case containsAny(query, aggregatorDomains):
		priority += 3
	}

	if containsAny(content, qualityIndicators) {
		priority += 2
	}

	yearTokens := []string{
		strconv.Itoa(now.Year()),
		strconv.Itoa(now.Year() + 1),
		"upcoming",
	}
	if containsAny(content, yearTokens) {
		priority++
	}

	return priority
}

// sourceType derives a coarse source label from the originating query for
// diversity tracking.
func sourceType(query string) string {
	if i := strings.IndexByte(query, ' '); i > 0 {
		return query[:i]
	}
	return "general"
}

// cutAtRune trims s to at most n bytes, backing off to a rune boundary so
// the cut never splits a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
