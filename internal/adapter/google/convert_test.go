package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/theakshaypant/calbridge/internal/core"
)

func TestFromGoogleTimedEvent(t *testing.T) {
	item := &calendar.Event{
		Id:          "abc123def",
		Summary:     "Design review",
		Description: "weekly",
		Location:    "Room 4",
		HtmlLink:    "https://calendar.google.com/event?eid=abc",
		Start:       &calendar.EventDateTime{DateTime: "2026-04-01T09:30:00+05:30"},
		End:         &calendar.EventDateTime{DateTime: "2026-04-01T10:00:00+05:30"},
	}

	e := fromGoogle(item, core.Calendar{ID: "primary", Name: "Personal"})

	assert.Equal(t, core.ProviderGoogle, e.Provider)
	assert.Equal(t, "primary", e.Calendar.ID)
	assert.Equal(t, "abc123def", e.ID)
	assert.Equal(t, "Design review", e.Title)
	assert.False(t, e.IsAllDay)
	assert.True(t, e.Start.Equal(time.Date(2026, 4, 1, 4, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30*time.Minute, e.Duration())
}

func TestFromGoogleAllDayKeepsCalendarDates(t *testing.T) {
	// A one-day event on the wire: exclusive end is the next day.
	item := &calendar.Event{
		Id:    "abc123def",
		Start: &calendar.EventDateTime{Date: "2026-04-01"},
		End:   &calendar.EventDateTime{Date: "2026-04-02"},
	}

	e := fromGoogle(item, core.Calendar{ID: "primary"})

	assert.True(t, e.IsAllDay)
	assert.Equal(t, "2026-04-01", e.StartDate)
	assert.Equal(t, "2026-04-01", e.EndDate, "canonical end date is inclusive")
	assert.True(t, e.Start.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, e.End.Equal(time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)))
}

func TestAllDayRoundTripNoDayShift(t *testing.T) {
	// Force a far-west local zone; calendar dates must not move.
	orig := time.Local
	loc, err := time.LoadLocation("Pacific/Honolulu")
	require.NoError(t, err)
	time.Local = loc
	defer func() { time.Local = orig }()

	start, end, err := allDayRange("2026-04-01", "2026-04-03")
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", start.Date)
	assert.Equal(t, "2026-04-04", end.Date, "wire end date is exclusive")

	e := fromGoogle(&calendar.Event{
		Id:    "abc123def",
		Start: start,
		End:   end,
	}, core.Calendar{ID: "primary"})

	assert.Equal(t, "2026-04-01", e.StartDate)
	assert.Equal(t, "2026-04-03", e.EndDate, "re-reading yields the dates the draft carried")
}

func TestAllDayRangeRejectsBadDate(t *testing.T) {
	_, _, err := allDayRange("2026-04-01", "not-a-date")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestInclusiveEndDate(t *testing.T) {
	assert.Equal(t, "2026-02-28", inclusiveEndDate("2026-03-01"))
	assert.Equal(t, "garbage", inclusiveEndDate("garbage"), "unparseable input passes through")
}

func TestFromGoogleMissingTimingStaysZero(t *testing.T) {
	e := fromGoogle(&calendar.Event{Id: "abc123def"}, core.Calendar{ID: "primary"})
	assert.True(t, e.Start.IsZero())
	assert.False(t, e.IsAllDay)
}
