package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/event-finder/internal/config"
	"github.com/sells-group/event-finder/internal/model"
	"github.com/sells-group/event-finder/pkg/anthropic"
	anthropicmocks "github.com/sells-group/event-finder/pkg/anthropic/mocks"
)

func extractTestConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{Workers: 6, TimeoutSecs: 5, ProviderTimeoutSecs: 2, Limit: 6, Targeted: true},
		Extract: config.ExtractConfig{
			BatchSize:          3,
			MaxSourcesPerBatch: 10,
			MaxContentChars:    384000,
		},
		Anthropic: config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 4096},
	}
}

func newTestFinder(t *testing.T, llm anthropic.Client) *Finder {
	t.Helper()
	return NewFinder(nil, llm, extractTestConfig(), WithNow(func() time.Time { return testNow }))
}

func llmResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func TestExtractEvents(t *testing.T) {
	ctx := context.Background()

	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(llmResponse(`{"events": [
			{"event_name": "Leadership Summit", "date": "2026-10-15", "location": "Austin, TX Convention Center", "url": "https://summit.com", "speakers": ["Tony Robbins"], "event_type": "in-person"},
			{"event_name": "Growth Webinar", "date": "2026-09-20", "location": "Zoom", "url": "", "speakers": "Tony Robbins", "event_type": "virtual"}
		]}`), nil).Once()

	f := newTestFinder(t, aiClient)
	events := f.ExtractEvents(ctx, "Tony Robbins", "some combined content", "", model.SortAsc)

	require.Len(t, events, 2)
	// Ascending date order.
	assert.Equal(t, "Growth Webinar", events[0].EventName)
	assert.Equal(t, "Leadership Summit", events[1].EventName)
	// Bare string speakers become a singleton list.
	assert.Equal(t, []string{"Tony Robbins"}, events[0].Speakers)
	// "virtual" normalizes to online.
	assert.Equal(t, model.EventTypeOnline, events[0].EventType)
	assert.Equal(t, model.EventTypeInPerson, events[1].EventType)
}

func TestExtractEventsDropsPastAndUndatedEvents(t *testing.T) {
	ctx := context.Background()

	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.Anything).
		Return(llmResponse(`{"events": [
			{"event_name": "Old Talk", "date": "2026-08-31", "speakers": ["Tony Robbins"], "event_type": "online"},
			{"event_name": "Undated Talk", "date": "", "speakers": ["Tony Robbins"], "event_type": "online"},
			{"event_name": "Fuzzy Talk", "date": "Fall 2026", "speakers": ["Tony Robbins"], "event_type": "online"},
			{"event_name": "Today Talk", "date": "2026-09-01", "speakers": ["Tony Robbins"], "event_type": "online"}
		]}`), nil).Once()

	f := newTestFinder(t, aiClient)
	events := f.ExtractEvents(ctx, "Tony Robbins", "content", "", model.SortAsc)

	// Today is not past; everything earlier or unparseable is gone.
	require.Len(t, events, 1)
	assert.Equal(t, "Today Talk", events[0].EventName)
}

func TestExtractEventsTypeFilter(t *testing.T) {
	ctx := context.Background()

	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.Anything).
		Return(llmResponse(`{"events": [
			{"event_name": "Webinar", "date": "2026-09-20", "location": "Online", "speakers": ["X"], "event_type": "online"},
			{"event_name": "Summit", "date": "2026-10-15", "location": "Denver Hotel", "speakers": ["X"], "event_type": "in-person"}
		]}`), nil).Once()

	f := newTestFinder(t, aiClient)
	events := f.ExtractEvents(ctx, "X", "content", model.EventTypeInPerson, model.SortAsc)

	require.Len(t, events, 1)
	assert.Equal(t, "Summit", events[0].EventName)
}

func TestExtractEventsFencedResponse(t *testing.T) {
	ctx := context.Background()

	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.Anything).
		Return(llmResponse("```json\n{\"events\": [{\"event_name\": \"Summit\", \"date\": \"2026-10-15\", \"speakers\": [\"X\"], \"event_type\": \"in-person\"}]}\n```"), nil).Once()

	f := newTestFinder(t, aiClient)
	events := f.ExtractEvents(ctx, "X", "content", "", model.SortAsc)

	require.Len(t, events, 1)
	assert.Equal(t, "Summit", events[0].EventName)
}

func TestExtractEventsRecoversFromFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("model error", func(t *testing.T) {
		aiClient := anthropicmocks.NewMockClient(t)
		aiClient.On("CreateMessage", mock.Anything, mock.Anything).
			Return(nil, assert.AnError).Once()

		f := newTestFinder(t, aiClient)
		assert.Empty(t, f.ExtractEvents(ctx, "X", "content", "", model.SortAsc))
	})

	t.Run("malformed response", func(t *testing.T) {
		aiClient := anthropicmocks.NewMockClient(t)
		aiClient.On("CreateMessage", mock.Anything, mock.Anything).
			Return(llmResponse("I could not find any events, sorry!"), nil).Once()

		f := newTestFinder(t, aiClient)
		assert.Empty(t, f.ExtractEvents(ctx, "X", "content", "", model.SortAsc))
	})

	t.Run("empty content skips the call", func(t *testing.T) {
		aiClient := anthropicmocks.NewMockClient(t)
		f := newTestFinder(t, aiClient)
		assert.Empty(t, f.ExtractEvents(ctx, "X", "   ", "", model.SortAsc))
	})
}

func TestExtractEventsFallbackTruncation(t *testing.T) {
	ctx := context.Background()

	var prompt string
	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		prompt = req.Messages[0].Content
		return true
	})).Return(llmResponse(`{"events": []}`), nil).Once()

	cfg := extractTestConfig()
	cfg.Extract.MaxContentChars = 1000
	f := NewFinder(nil, aiClient, cfg, WithNow(func() time.Time { return testNow }))

	// Three-byte runes with a limit that lands mid-rune.
	content := strings.Repeat("講", 600)
	f.ExtractEvents(ctx, "田中太郎", content, "", model.SortAsc)

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, fallbackTruncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("講", 400))
}

func TestExtractEventsPromptContents(t *testing.T) {
	ctx := context.Background()

	var prompt string
	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		prompt = req.Messages[0].Content
		return true
	})).Return(llmResponse(`{"events": []}`), nil).Once()

	f := newTestFinder(t, aiClient)
	f.ExtractEvents(ctx, "Tony Robbins", "the page content", model.EventTypeOnline, model.SortAsc)

	assert.Contains(t, prompt, "TODAY'S DATE: 2026-09-01")
	assert.Contains(t, prompt, `"Tony Robbins"`)
	assert.Contains(t, prompt, "the page content")
	assert.Contains(t, prompt, "Only include ONLINE/VIRTUAL events")
}

func TestNormalizeEventType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw      string
		location string
		want     model.EventType
	}{
		{"online", "", model.EventTypeOnline},
		{"Virtual", "", model.EventTypeOnline},
		{"remote", "", model.EventTypeOnline},
		{"webinar", "", model.EventTypeOnline},
		{"in-person", "", model.EventTypeInPerson},
		{"LIVE", "", model.EventTypeInPerson},
		{"venue", "", model.EventTypeInPerson},
		{"", "Zoom", model.EventTypeOnline},
		{"", "Hilton Hotel, Chicago", model.EventTypeInPerson},
		{"hybrid", "Moscone Center", model.EventTypeInPerson},
		{"", "somewhere", model.EventTypeOnline},
		{"", "", model.EventTypeOnline},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeEventType(tc.raw, tc.location), "raw=%q location=%q", tc.raw, tc.location)
	}
}

func TestNormalizeSpeakers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, normalizeSpeakers(nil))
	assert.Equal(t, []string{"Alice"}, normalizeSpeakers("Alice"))
	assert.Equal(t, []string{"Alice", "Bob"}, normalizeSpeakers([]any{"Alice", "Bob"}))
	assert.Equal(t, []string{"42"}, normalizeSpeakers([]any{42}))
}

func TestSortEventsByDate(t *testing.T) {
	t.Parallel()

	events := []model.Event{
		{EventName: "c", Date: "2026-12-01"},
		{EventName: "a", Date: "2026-09-20"},
		{EventName: "b", Date: "2026-10-15"},
	}

	sortEventsByDate(events, model.SortAsc)
	assert.Equal(t, []string{"a", "b", "c"}, []string{events[0].EventName, events[1].EventName, events[2].EventName})

	sortEventsByDate(events, model.SortDesc)
	assert.Equal(t, []string{"c", "b", "a"}, []string{events[0].EventName, events[1].EventName, events[2].EventName})
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"events": []}`, cleanJSON("```json\n{\"events\": []}\n```"))
	assert.Equal(t, `{"events": []}`, cleanJSON("```\n{\"events\": []}\n```"))
	assert.Equal(t, `{"events": []}`, cleanJSON(`Here you go: {"events": []} Done.`))
	assert.Equal(t, `{"events": []}`, cleanJSON(`{"events": []}`))
}
