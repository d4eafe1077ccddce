package core

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCalendarID(t *testing.T) {
	cases := []struct {
		name     string
		provider Provider
		id       string
		wantErr  bool
	}{
		{"google primary", ProviderGoogle, "primary", false},
		{"google email", ProviderGoogle, "user@example.com", false},
		{"google group", ProviderGoogle, "c_abc123@group.calendar.google.com", false},
		{"google empty", ProviderGoogle, "", true},
		{"google spaces", ProviderGoogle, "my calendar", true},
		{"outlook graph id", ProviderOutlook, "AQMkAGVmMDEzM=", false},
		{"outlook empty", ProviderOutlook, "", true},
		{"outlook slash", ProviderOutlook, "abc/def", true},
		{"unknown provider", Provider("caldav"), "primary", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCalendarID(tc.provider, tc.id)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation), "should be marked as validation error")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEventID(t *testing.T) {
	assert.NoError(t, ValidateEventID(ProviderGoogle, "abc0v12de"))
	assert.Error(t, ValidateEventID(ProviderGoogle, "abc"), "too short")
	assert.Error(t, ValidateEventID(ProviderGoogle, "ABCDEF"), "uppercase is not base32hex")
	assert.NoError(t, ValidateEventID(ProviderOutlook, "AAMkAGI2TG93AAA="))
	assert.Error(t, ValidateEventID(ProviderOutlook, ""))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://calendar.google.com/event?eid=abc"))
	assert.NoError(t, ValidateURL("http://localhost:8080/callback"))
	assert.Error(t, ValidateURL("ftp://example.com/file"))
	assert.Error(t, ValidateURL("not a url"))
	assert.Error(t, ValidateURL("https://"))
}

func TestValidateDraft(t *testing.T) {
	now := time.Now()

	timed := EventDraft{CalendarID: "primary", Title: "standup", Start: now, End: now.Add(time.Hour)}
	assert.NoError(t, ValidateDraft(ProviderGoogle, timed))

	allDay := EventDraft{CalendarID: "primary", Title: "holiday", StartDate: "2026-09-01", EndDate: "2026-09-02"}
	assert.NoError(t, ValidateDraft(ProviderGoogle, allDay))

	missingTitle := timed
	missingTitle.Title = ""
	assert.Error(t, ValidateDraft(ProviderGoogle, missingTitle))

	backwards := EventDraft{CalendarID: "primary", Title: "x", Start: now, End: now.Add(-time.Hour)}
	assert.Error(t, ValidateDraft(ProviderGoogle, backwards))

	halfAllDay := EventDraft{CalendarID: "primary", Title: "x", StartDate: "2026-09-01"}
	assert.Error(t, ValidateDraft(ProviderGoogle, halfAllDay))

	badDate := EventDraft{CalendarID: "primary", Title: "x", StartDate: "09/01/2026", EndDate: "09/02/2026"}
	assert.Error(t, ValidateDraft(ProviderGoogle, badDate))
}

func TestValidatePatch(t *testing.T) {
	title := "renamed"
	titleOnly := EventPatch{CalendarID: "primary", EventID: "abc0v12de", Title: &title}
	require.NoError(t, ValidatePatch(ProviderGoogle, titleOnly))
	assert.False(t, titleOnly.TimingChanged(), "a title edit must not count as a timing change")

	start := time.Now()
	end := start.Add(time.Hour)
	retimed := EventPatch{CalendarID: "primary", EventID: "abc0v12de", Start: &start, End: &end}
	require.NoError(t, ValidatePatch(ProviderGoogle, retimed))
	assert.True(t, retimed.TimingChanged())
	assert.False(t, retimed.AllDay())

	sd, ed := "2026-09-01", "2026-09-02"
	both := EventPatch{CalendarID: "primary", EventID: "abc0v12de", Start: &start, End: &end, StartDate: &sd, EndDate: &ed}
	assert.Error(t, ValidatePatch(ProviderGoogle, both), "timed and all-day timing are mutually exclusive")

	halfTimed := EventPatch{CalendarID: "primary", EventID: "abc0v12de", Start: &start}
	assert.Error(t, ValidatePatch(ProviderGoogle, halfTimed))

	badID := EventPatch{CalendarID: "primary", EventID: "nope"}
	assert.Error(t, ValidatePatch(ProviderGoogle, badID))
}
