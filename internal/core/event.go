package core

import (
	"fmt"
	"time"
)

// Provider identifies a calendar backend.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// Providers lists every supported backend, in display order.
var Providers = []Provider{ProviderGoogle, ProviderOutlook}

// DisplayName returns a human-readable provider label.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google Calendar"
	case ProviderOutlook:
		return "Outlook Calendar"
	default:
		return string(p)
	}
}

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderOutlook
}

// Calendar represents a calendar an event belongs to, normalized
// across providers.
type Calendar struct {
	// Calendar ID (e.g., "primary", "user@example.com", a Graph id)
	ID string
	// Human-readable name (e.g., "Work", "Holidays in India")
	Name string
	// Display color as provided by the backend, may be empty
	Color string
	// Whether this is the account's default calendar
	Primary bool
}

// EventKey uniquely identifies an event across providers. The native
// id alone is not unique: the same event can exist in two calendars,
// and two providers could in principle collide.
type EventKey struct {
	Provider   Provider
	CalendarID string
	EventID    string
}

func (k EventKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Provider, k.CalendarID, k.EventID)
}

// Event is the provider-agnostic event record. All adapters convert
// their native shapes to this format.
type Event struct {
	Provider Provider
	// Which calendar this event belongs to
	Calendar Calendar
	// Unique ID within the calendar (provided by the source)
	ID string
	// Details
	Title       string
	Description string
	Location    string
	// Calendar event page URL
	URL string
	// Display color, may be empty
	Color string
	// Timing. For all-day events Start/End hold midnight UTC of the
	// calendar date; the authoritative values are StartDate/EndDate.
	Start time.Time
	End   time.Time
	// Calendar dates (YYYY-MM-DD), set only when IsAllDay. Kept as
	// plain dates so a timezone offset can never shift the day.
	StartDate string
	EndDate   string
	IsAllDay  bool
}

// Key returns the composite identity of the event.
func (e Event) Key() EventKey {
	return EventKey{Provider: e.Provider, CalendarID: e.Calendar.ID, EventID: e.ID}
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// InProgress checks if the event is happening right now.
func (e Event) InProgress(now time.Time) bool {
	return now.After(e.Start) && now.Before(e.End)
}

// DateOnly is the wire format for calendar dates.
const DateOnly = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateOnly, s)
}

// EventDraft is the input for creating an event. Supplying
// StartDate/EndDate makes the event all-day; supplying Start/End makes
// it timed. The two are mutually exclusive.
type EventDraft struct {
	CalendarID  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	StartDate   string
	EndDate     string
}

// AllDay reports whether the draft describes an all-day event.
func (d EventDraft) AllDay() bool { return d.StartDate != "" }

// EventPatch is the input for updating an event. Nil fields are left
// untouched, so an unrelated title edit can never flip an all-day
// event into a timed one: IsAllDay is only re-derived when the timing
// fields themselves change.
type EventPatch struct {
	CalendarID  string
	EventID     string
	Title       *string
	Description *string
	Location    *string
	Start       *time.Time
	End         *time.Time
	StartDate   *string
	EndDate     *string
}

// TimingChanged reports whether the patch touches start or end.
func (p EventPatch) TimingChanged() bool {
	return p.Start != nil || p.End != nil || p.StartDate != nil || p.EndDate != nil
}

// AllDay reports whether the changed timing is date-only. Only
// meaningful when TimingChanged is true.
func (p EventPatch) AllDay() bool { return p.StartDate != nil }
