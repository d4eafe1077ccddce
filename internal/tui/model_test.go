package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theakshaypant/calbridge/internal/core"
)

func agendaEvent(id, title, url string, start time.Time) core.Event {
	return core.Event{
		Provider: core.ProviderGoogle,
		ID:       id,
		Title:    title,
		URL:      url,
		Start:    start,
		End:      start.Add(time.Hour),
		Calendar: core.Calendar{ID: "cal-1", Name: "Work"},
	}
}

func pressKey(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModelShowsOnlyCurrentDay(t *testing.T) {
	today := time.Now()
	events := []core.Event{
		agendaEvent("e1", "Standup", "", today),
		agendaEvent("e2", "Tomorrow planning", "", today.AddDate(0, 0, 1)),
	}
	m := NewModel(func() []core.Event { return events }, nil, nil)

	require.Len(t, m.events, 1)
	assert.Equal(t, "Standup", m.events[0].Title)

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.Len(t, m.events, 1)
	assert.Equal(t, "Tomorrow planning", m.events[0].Title)

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	require.Len(t, m.events, 1)
	assert.Equal(t, "Standup", m.events[0].Title)
}

func TestModelRefreshRereadsSnapshot(t *testing.T) {
	events := []core.Event{agendaEvent("e1", "Standup", "", time.Now())}
	refreshed := false
	m := NewModel(
		func() []core.Event { return events },
		func(context.Context) error { refreshed = true; return nil },
		nil)

	m, cmd := pressKey(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.True(t, m.refreshing)

	events = append(events, agendaEvent("e2", "Retro", "", time.Now()))
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.True(t, refreshed)
	assert.False(t, m.refreshing)
	assert.Empty(t, m.status)
	assert.Len(t, m.events, 2)
}

func TestModelRefreshFailureSurfacesStatus(t *testing.T) {
	m := NewModel(
		func() []core.Event { return nil },
		func(context.Context) error { return errors.New("cool-down active") },
		nil)

	m, cmd := pressKey(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	m = next.(Model)

	assert.Contains(t, m.status, "refresh failed")
	assert.Contains(t, m.status, "cool-down active")
}

func TestModelOpensOnlyWebLinks(t *testing.T) {
	var opened []string
	open := func(url string) error { opened = append(opened, url); return nil }

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events := []core.Event{
		agendaEvent("e1", "Good link", "https://calendar.example.com/event/1", dayStart.Add(9*time.Hour)),
		agendaEvent("e2", "Bad link", "file:///etc/passwd", dayStart.Add(10*time.Hour)),
		agendaEvent("e3", "No link", "", dayStart.Add(11*time.Hour)),
	}
	m := NewModel(func() []core.Event { return events }, nil, open)

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"https://calendar.example.com/event/1"}, opened)

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, opened, 1, "non-web URLs never reach the opener")
	assert.Contains(t, m.status, "not a valid URL")

	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = pressKey(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Len(t, opened, 1)
}

func TestModelListRendersWholeDay(t *testing.T) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	events := []core.Event{
		agendaEvent("e1", "Early standup", "", dayStart.Add(time.Hour)),
		agendaEvent("e2", "Late review", "", dayStart.Add(22*time.Hour)),
	}
	m := NewModel(func() []core.Event { return events }, nil, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	list := m.renderList(40)
	assert.Contains(t, list, "Early standup")
	assert.Contains(t, list, "Late review")
}
