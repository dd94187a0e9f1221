package pipeline

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/event-finder/internal/model"
)

// Intent is one named search strategy. Templates may reference {subject},
// {type}, {year} and {next_year} placeholders; the targeted template is used
// when an event-type filter is active and targeted search is enabled.
type Intent struct {
	Name     string `yaml:"name"`
	Template string `yaml:"template"`
	Targeted string `yaml:"targeted"`
}

// DefaultIntents returns the built-in search intent table. Order is fixed:
// query generation must be deterministic for log correlation.
func DefaultIntents() []Intent {
	return []Intent{
		{
			Name:     "general",
			Template: `"{subject}" upcoming speaking events {year} {next_year} confirmed speaker`,
			Targeted: `"{subject}" upcoming {type} speaking events {year} {next_year} confirmed speaker`,
		},
		{
			Name:     "eventbrite",
			Template: `site:eventbrite.com "{subject}" speaker upcoming event conference {year} {next_year}`,
			Targeted: `site:eventbrite.com "{subject}" {type} speaker event conference {year} {next_year}`,
		},
		{
			Name:     "meetup",
			Template: `site:meetup.com "{subject}" speaker event talk {year} {next_year}`,
			Targeted: `site:meetup.com "{subject}" {type} speaker event talk {year} {next_year}`,
		},
		{
			Name:     "official_site",
			Template: `"{subject}" official website speaking schedule events calendar {year} {next_year}`,
			Targeted: `"{subject}" official website {type} speaking schedule events calendar {year} {next_year}`,
		},
		{
			Name:     "conferences",
			Template: `"{subject}" keynote speaker conference summit {year} {next_year} confirmed`,
			Targeted: `"{subject}" keynote speaker {type} conference summit {year} {next_year} confirmed`,
		},
		{
			Name:     "speaker_bureau",
			Template: `"{subject}" speaker bureau speaking engagements bookings {year} {next_year}`,
			Targeted: `"{subject}" speaker bureau {type} speaking engagements bookings {year} {next_year}`,
		},
	}
}

// LoadIntents reads an intent table from a YAML file, replacing the built-in
// table. The YAML has a top-level "intents" key.
func LoadIntents(path string) ([]Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "queries: read intents %s", path)
	}

	var wrapper struct {
		Intents []Intent `yaml:"intents"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "queries: parse intents")
	}
	if len(wrapper.Intents) == 0 {
		return nil, eris.Errorf("queries: no intents in %s", path)
	}
	for _, in := range wrapper.Intents {
		if in.Name == "" || in.Template == "" {
			return nil, eris.Errorf("queries: intent missing name or template in %s", path)
		}
	}
	return wrapper.Intents, nil
}

// GenerateQueries expands each intent into a provider query for the subject.
// When eventType is set and targeted search is enabled, intents with a
// targeted template encode the type filter directly into the query text.
// Identical inputs always yield the identical query set in the same order.
func GenerateQueries(intents []Intent, subject string, eventType model.EventType, targeted bool, now time.Time) []model.SearchQuery {
	year := strconv.Itoa(now.Year())
	nextYear := strconv.Itoa(now.Year() + 1)

	useTargeted := targeted && eventType != ""

	queries := make([]model.SearchQuery, 0, len(intents))
	for _, in := range intents {
		tmpl := in.Template
		if useTargeted && in.Targeted != "" {
			tmpl = in.Targeted
		}
		r := strings.NewReplacer(
			"{subject}", subject,
			"{type}", string(eventType),
			"{year}", year,
			"{next_year}", nextYear,
		)
		queries = append(queries, model.SearchQuery{
			Intent:   in.Name,
			Provider: "firecrawl",
			Text:     r.Replace(tmpl),
		})
	}
	return queries
}
