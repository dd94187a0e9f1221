package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// EventType classifies how an event is attended.
type EventType string

const (
	EventTypeOnline   EventType = "online"
	EventTypeInPerson EventType = "in-person"
	EventTypeUnknown  EventType = "unknown"
)

// SortOrder controls date ordering of the final event list.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// DateFormat is the required calendar date layout for event dates.
const DateFormat = "2006-01-02"

// maxSubjectLen caps the accepted subject name length after trimming.
const maxSubjectLen = 100

// ErrInvalidInput marks caller-supplied parameter failures. Handlers map it
// to a 400 response; everything else is an internal failure.
var ErrInvalidInput = eris.New("invalid input")

// Event is one speaking engagement extracted from source content.
// Field order is fixed: consumers rely on the serialized sequence.
type Event struct {
	EventName string    `json:"event_name"`
	Date      string    `json:"date"`
	Location  string    `json:"location"`
	URL       string    `json:"url"`
	Speakers  []string  `json:"speakers"`
	EventType EventType `json:"event_type"`
}

// ParsedDate returns the event date as a time.Time.
func (e Event) ParsedDate() (time.Time, error) {
	t, err := time.Parse(DateFormat, e.Date)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: parse event date %q", e.Date)
	}
	return t, nil
}

// SearchQuery is one provider-bound query produced by the intent table.
type SearchQuery struct {
	Intent   string
	Provider string
	Text     string
}

// RawResult is a single search hit with its page content and provenance.
type RawResult struct {
	URL      string
	Markdown string
	Query    string
	Provider string
}

// FindRequest carries the validated parameters of one discovery call.
type FindRequest struct {
	Subject   string
	EventType EventType // empty means no filter
	Sort      SortOrder
}

// Validate checks the request against the input contract: subject 1-100
// chars after trimming, known enum values. Sort defaults to ascending.
func (r *FindRequest) Validate() error {
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Subject == "" {
		return eris.Wrap(ErrInvalidInput, "speaker_name is required")
	}
	if utf8.RuneCountInString(r.Subject) > maxSubjectLen {
		return eris.Wrap(ErrInvalidInput, "speaker_name too long (max 100 chars)")
	}
	switch r.EventType {
	case "", EventTypeOnline, EventTypeInPerson:
	default:
		return eris.Wrap(ErrInvalidInput, "event_type must be 'online' or 'in-person'")
	}
	switch r.Sort {
	case "":
		r.Sort = SortAsc
	case SortAsc, SortDesc:
	default:
		return eris.Wrap(ErrInvalidInput, "sort must be 'asc' or 'desc'")
	}
	return nil
}
