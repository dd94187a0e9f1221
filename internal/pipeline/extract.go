package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/event-finder/internal/model"
	"github.com/sells-group/event-finder/pkg/anthropic"
)

// extractSystemText instructs the model to emit bare JSON so responses can be
// decoded strictly.
const extractSystemText = "You are a research assistant extracting structured event data from web page content. Respond with a single valid JSON object and nothing else."

// fallbackTruncationMarker is appended when combined content exceeds the hard
// cap. Distinct from the combiner's priority-aware truncation: this is the
// last-resort guard before the model call.
const fallbackTruncationMarker = "\n\n[FALLBACK TRUNCATION - CONTENT TOO LONG]"

const extractPromptTemplate = `Based on the provided text, extract upcoming events where "%s" is EXPLICITLY MENTIONED as a speaker or presenter.

CRITICAL VALIDATION REQUIREMENTS:
1. TODAY'S DATE: %s. Only include events on or after this date.
2. SPEAKER VERIFICATION: "%s" must be EXPLICITLY mentioned by name as a speaker, presenter, or featured participant in the event description.
3. DATE FORMAT: The 'date' field must be in YYYY-MM-DD format.
4. DATE REQUIREMENT: If a specific date is not clearly mentioned, do not include the event.
5. DUPLICATE REMOVAL: Consolidate duplicate events from different sources into a single entry.%s
6. EVENT TYPE STANDARDIZATION:
   - Use ONLY 'online' for virtual/online/remote events
   - Use ONLY 'in-person' for physical/live/venue-based events
   - Do NOT use 'virtual' - convert it to 'online'
7. SPEAKERS FIELD: Must be an array containing at least "%s". Example: ["Tony Robbins"] NOT "Tony Robbins"
8. ACCURACY CHECK: Only include events where you can clearly see "%s" mentioned in the source content.
9. NO ASSUMPTIONS: Do not infer or assume "%s" is speaking if not explicitly stated.

Return ONLY a valid JSON object where the key is "events" and the value is a list of event objects.
The fields in each event object MUST be in the EXACT order: event_name, date, location, url, speakers, event_type.
If no events are found, return an empty list for the "events" key.

CONTEXT:
%s`

// candidateEvent is the loosely-typed shape of one model-emitted event before
// validation and normalization. Speakers may arrive as a string or a list.
type candidateEvent struct {
	EventName string `json:"event_name"`
	Date      string `json:"date"`
	Location  string `json:"location"`
	URL       string `json:"url"`
	Speakers  any    `json:"speakers"`
	EventType string `json:"event_type"`
}

// ExtractEvents runs one extraction call over the combined content and
// returns the validated, normalized events. Model and parse failures are
// recovered as an empty list: a bad batch never fails the pipeline.
func (f *Finder) ExtractEvents(ctx context.Context, subject, content string, eventType model.EventType, sortOrder model.SortOrder) []model.Event {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	// Safety fallback, separate from the combiner's smarter truncation.
	if limit := f.cfg.Extract.MaxContentChars; limit > 0 && len(content) > limit {
		content = cutAtRune(content, limit) + fallbackTruncationMarker
		zap.L().Warn("extract: fallback truncation applied", zap.Int("chars", len(content)))
	}

	prompt := buildExtractionPrompt(subject, content, eventType, f.today())

	temperature := 0.0
	resp, err := f.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       f.cfg.Anthropic.Model,
		MaxTokens:   int64(f.cfg.Anthropic.MaxTokens),
		System:      extractSystemText,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		zap.L().Warn("extract: model call failed", zap.String("subject", subject), zap.Error(err))
		return nil
	}
	f.costs.AddClaude(f.cfg.Anthropic.Model, int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens))

	events, err := f.parseEvents(anthropic.ExtractText(resp), eventType, sortOrder)
	if err != nil {
		zap.L().Warn("extract: response parse failed", zap.String("subject", subject), zap.Error(err))
		return nil
	}

	zap.L().Info("extract: events parsed",
		zap.String("subject", subject),
		zap.Int("events", len(events)),
	)
	return events
}

// buildExtractionPrompt renders the deterministic instruction prompt. The
// same subject, content, filter and date always yield the same prompt.
func buildExtractionPrompt(subject, content string, eventType model.EventType, today time.Time) string {
	var typeFilter string
	switch eventType {
	case model.EventTypeOnline:
		typeFilter = "\n10. Only include ONLINE/VIRTUAL events (exclude in-person events)."
	case model.EventTypeInPerson:
		typeFilter = "\n10. Only include IN-PERSON events (exclude online/virtual events)."
	}

	return fmt.Sprintf(extractPromptTemplate,
		subject,
		today.Format(model.DateFormat),
		subject,
		typeFilter,
		subject,
		subject,
		subject,
		content,
	)
}

// parseEvents strictly decodes the model response, drops candidates with
// missing, unparseable or past dates, normalizes the survivors, sorts them by
// date and applies the event-type filter.
func (f *Finder) parseEvents(response string, eventType model.EventType, sortOrder model.SortOrder) ([]model.Event, error) {
	var payload struct {
		Events []candidateEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(response)), &payload); err != nil {
		return nil, eris.Wrap(err, "extract: decode model response")
	}

	today := f.today()
	var events []model.Event
	for _, c := range payload.Events {
		if c.Date == "" {
			continue
		}
		date, err := time.Parse(model.DateFormat, c.Date)
		if err != nil || date.Before(today) {
			continue
		}
		events = append(events, model.Event{
			EventName: c.EventName,
			Date:      c.Date,
			Location:  c.Location,
			URL:       c.URL,
			Speakers:  normalizeSpeakers(c.Speakers),
			EventType: normalizeEventType(c.EventType, c.Location),
		})
	}

	sortEventsByDate(events, sortOrder)

	if eventType != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.EventType == eventType {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	return events, nil
}

// normalizeEventType maps synonyms onto the canonical vocabulary, then falls
// back to location keywords, then defaults to online.
func normalizeEventType(raw, location string) model.EventType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "online", "virtual", "remote", "webinar":
		return model.EventTypeOnline
	case "in-person", "live", "physical", "venue", "conference":
		return model.EventTypeInPerson
	}

	loc := strings.ToLower(location)
	if containsAny(loc, []string{"virtual", "online", "zoom", "webinar", "remote"}) {
		return model.EventTypeOnline
	}
	if containsAny(loc, []string{"hotel", "center", "venue", "hall", "address"}) {
		return model.EventTypeInPerson
	}
	return model.EventTypeOnline
}

// normalizeSpeakers coerces the model's speakers value to a string list: a
// bare string becomes a singleton, any other non-list value its string form,
// an absent value an empty list.
func normalizeSpeakers(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

// sortEventsByDate sorts in place. Dates are zero-padded ISO strings, so
// lexicographic order is date order.
func sortEventsByDate(events []model.Event, order model.SortOrder) {
	sort.SliceStable(events, func(a, b int) bool {
		if order == model.SortDesc {
			return events[a].Date > events[b].Date
		}
		return events[a].Date < events[b].Date
	})
}

// cleanJSON strips markdown fences and extracts the outer JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
