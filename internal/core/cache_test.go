package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(id string, start time.Time) Event {
	return Event{
		Provider: ProviderGoogle,
		Calendar: Calendar{ID: "primary", Name: "Primary"},
		ID:       id,
		Title:    "event " + id,
		Start:    start,
		End:      start.Add(time.Hour),
	}
}

func TestReplaceCalendarDropsOldEntries(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	c.ReplaceCalendar(ProviderGoogle, "primary", []Event{
		testEvent("aaaaa", now),
		testEvent("bbbbb", now.Add(time.Hour)),
	})
	require.Equal(t, 2, c.Len())

	c.ReplaceCalendar(ProviderGoogle, "primary", []Event{
		testEvent("ccccc", now),
	})
	assert.Equal(t, 1, c.Len(), "old calendar slice should be replaced wholesale")

	_, ok := c.Get(EventKey{ProviderGoogle, "primary", "aaaaa"})
	assert.False(t, ok)
}

func TestReplaceCalendarLeavesOtherPartitionsAlone(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	other := testEvent("ddddd", now)
	other.Calendar.ID = "work@example.com"
	c.ReplaceCalendar(ProviderGoogle, "work@example.com", []Event{other})
	c.ReplaceCalendar(ProviderGoogle, "primary", []Event{testEvent("aaaaa", now)})

	c.ReplaceCalendar(ProviderGoogle, "primary", nil)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(EventKey{ProviderGoogle, "work@example.com", "ddddd"})
	assert.True(t, ok, "other calendar's events must survive")
}

func TestApplyIsIdempotent(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	upserts := []Event{testEvent("aaaaa", now), testEvent("bbbbb", now.Add(time.Hour))}
	removed := []string{"bbbbb", "zzzzz"}

	c.Apply(ProviderGoogle, "primary", upserts, removed)
	first := c.Snapshot()

	// Same delta twice must yield the same cache contents.
	c.Apply(ProviderGoogle, "primary", upserts, removed)
	second := c.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.Len())
}

func TestApplyRemovalWinsOverPresence(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	// "aaaaa" shows up both as an upsert and a removal in the same
	// page: the removal wins.
	c.Apply(ProviderGoogle, "primary", []Event{testEvent("aaaaa", now)}, []string{"aaaaa"})

	_, ok := c.Get(EventKey{ProviderGoogle, "primary", "aaaaa"})
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestDropProvider(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	c.Apply(ProviderGoogle, "primary", []Event{testEvent("aaaaa", now)}, nil)
	outlook := testEvent("AAMkAGI2", now)
	outlook.Provider = ProviderOutlook
	outlook.Calendar.ID = "AQMkAGVm"
	c.Apply(ProviderOutlook, "AQMkAGVm", []Event{outlook}, nil)

	c.DropProvider(ProviderGoogle)

	require.Equal(t, 1, c.Len())
	assert.Equal(t, ProviderOutlook, c.Snapshot()[0].Provider)
}

func TestSnapshotIsSortedAndDetached(t *testing.T) {
	c := NewEventCache()
	now := time.Now()

	c.Apply(ProviderGoogle, "primary", []Event{
		testEvent("bbbbb", now.Add(2*time.Hour)),
		testEvent("aaaaa", now),
		testEvent("ccccc", now.Add(time.Hour)),
	}, nil)

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "aaaaa", snap[0].ID)
	assert.Equal(t, "ccccc", snap[1].ID)
	assert.Equal(t, "bbbbb", snap[2].ID)

	// Mutating the snapshot must not leak into the cache.
	snap[0].Title = "mutated"
	got, ok := c.Get(EventKey{ProviderGoogle, "primary", "aaaaa"})
	require.True(t, ok)
	assert.Equal(t, "event aaaaa", got.Title)
}

func TestEventsInWindow(t *testing.T) {
	c := NewEventCache()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c.Apply(ProviderGoogle, "primary", []Event{
		testEvent("aaaaa", now.Add(-48*time.Hour)),
		testEvent("bbbbb", now),
		testEvent("ccccc", now.Add(48*time.Hour)),
	}, nil)

	got := c.EventsIn(TimeWindow{Start: now.Add(-time.Hour), End: now.Add(24 * time.Hour)})
	require.Len(t, got, 1)
	assert.Equal(t, "bbbbb", got[0].ID)
}
