package pipeline

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/event-finder/internal/model"
)

// keyFolder performs Unicode case folding so dedupe keys compare
// case-insensitively across scripts, not just ASCII.
var keyFolder = cases.Fold()

// dedupeKey identifies a real-world event: two extracted records with the
// same normalized name, date and location are the same event.
type dedupeKey struct {
	name     string
	date     string
	location string
}

func keyOf(e model.Event) dedupeKey {
	return dedupeKey{
		name:     keyFolder.String(strings.TrimSpace(e.EventName)),
		date:     strings.TrimSpace(e.Date),
		location: keyFolder.String(strings.TrimSpace(e.Location)),
	}
}

// DedupeEvents collapses duplicate events across batches and sources. The
// first occurrence of a key establishes the kept record; later occurrences
// merge into it: speaker sets are unioned and re-sorted, and empty url or
// location fields are filled from the duplicate. Output preserves first-seen
// order. Pure function, no I/O.
func DedupeEvents(events []model.Event) []model.Event {
	seen := make(map[dedupeKey]int, len(events))
	var out []model.Event

	for _, e := range events {
		k := keyOf(e)
		idx, ok := seen[k]
		if !ok {
			seen[k] = len(out)
			out = append(out, e)
			continue
		}

		kept := &out[idx]
		kept.Speakers = unionSpeakers(kept.Speakers, e.Speakers)
		if kept.URL == "" && e.URL != "" {
			kept.URL = e.URL
		}
		if kept.Location == "" && e.Location != "" {
			kept.Location = e.Location
		}
	}

	return out
}

// unionSpeakers merges two speaker lists into a sorted set.
func unionSpeakers(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}

	merged := make([]string, 0, len(set))
	for s := range set {
		merged = append(merged, s)
	}
	sort.Strings(merged)
	return merged
}
