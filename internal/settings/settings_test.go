package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theakshaypant/calbridge/internal/core"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.yaml")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s, _ := tempStore(t)
	assert.Empty(t, s.Cursor(core.ProviderGoogle, "primary"))
	assert.Empty(t, s.EnabledCalendars(core.ProviderGoogle))
	assert.Empty(t, s.Account(core.ProviderGoogle))
}

func TestCursorRoundTrip(t *testing.T) {
	s, path := tempStore(t)

	require.NoError(t, s.SetCursor(core.ProviderGoogle, "primary", "CPDAlvWDx70CEPDAlvWDx70C"))
	require.NoError(t, s.SetCursor(core.ProviderOutlook, "AQMkAGVm", "https://graph.microsoft.com/v1.0/me/calendarView/delta?$deltatoken=abc"))

	// Reload from disk and check persistence.
	s2, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "CPDAlvWDx70CEPDAlvWDx70C", s2.Cursor(core.ProviderGoogle, "primary"))
	assert.Contains(t, s2.Cursor(core.ProviderOutlook, "AQMkAGVm"), "deltatoken")

	// Cursors are scoped per (provider, calendar).
	assert.Empty(t, s2.Cursor(core.ProviderGoogle, "work@example.com"))
}

func TestSetCursorEmptyClears(t *testing.T) {
	s, _ := tempStore(t)
	require.NoError(t, s.SetCursor(core.ProviderGoogle, "primary", "tok"))
	require.NoError(t, s.SetCursor(core.ProviderGoogle, "primary", ""))
	assert.Empty(t, s.Cursor(core.ProviderGoogle, "primary"))
}

func TestClearCursorsIsProviderScoped(t *testing.T) {
	s, _ := tempStore(t)
	require.NoError(t, s.SetCursor(core.ProviderGoogle, "primary", "g1"))
	require.NoError(t, s.SetCursor(core.ProviderGoogle, "work@example.com", "g2"))
	require.NoError(t, s.SetCursor(core.ProviderOutlook, "AQMkAGVm", "o1"))

	require.NoError(t, s.ClearCursors(core.ProviderGoogle))

	assert.Empty(t, s.Cursor(core.ProviderGoogle, "primary"))
	assert.Empty(t, s.Cursor(core.ProviderGoogle, "work@example.com"))
	assert.Equal(t, "o1", s.Cursor(core.ProviderOutlook, "AQMkAGVm"))
}

func TestEnabledCalendarsCopy(t *testing.T) {
	s, _ := tempStore(t)
	require.NoError(t, s.SetEnabledCalendars(core.ProviderGoogle, []string{"primary", "work@example.com"}))

	got := s.EnabledCalendars(core.ProviderGoogle)
	require.Len(t, got, 2)
	got[0] = "mutated"
	assert.Equal(t, "primary", s.EnabledCalendars(core.ProviderGoogle)[0], "callers get a copy")
}

func TestAccountRoundTrip(t *testing.T) {
	s, path := tempStore(t)
	require.NoError(t, s.SetAccount(core.ProviderOutlook, "user@example.com"))

	s2, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", s2.Account(core.ProviderOutlook))

	require.NoError(t, s2.SetAccount(core.ProviderOutlook, ""))
	assert.Empty(t, s2.Account(core.ProviderOutlook))
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s, path := tempStore(t)
	require.NoError(t, s.SetCursor(core.ProviderGoogle, "primary", "tok"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.yaml", entries[0].Name())
}
