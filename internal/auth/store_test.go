package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/theakshaypant/calbridge/internal/core"
)

func sampleConnection(p core.Provider) *Connection {
	return &Connection{
		Provider: p,
		Token: &oauth2.Token{
			AccessToken:  "at-" + string(p),
			RefreshToken: "rt-" + string(p),
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
		},
		Account:     string(p) + "@example.com",
		ConnectedAt: time.Now().Add(-24 * time.Hour).Truncate(time.Second),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "connections.json")
	s := NewFileStore(path)

	got, err := s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, got, "missing connection loads as nil, nil")

	want := sampleConnection(core.ProviderGoogle)
	require.NoError(t, s.Save(want))

	got, err = s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Token.RefreshToken, got.Token.RefreshToken)
	assert.Equal(t, want.Account, got.Account)
	assert.True(t, want.ConnectedAt.Equal(got.ConnectedAt))
}

func TestFileStoreKeepsProvidersSeparate(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "connections.json"))
	require.NoError(t, s.Save(sampleConnection(core.ProviderGoogle)))
	require.NoError(t, s.Save(sampleConnection(core.ProviderOutlook)))

	require.NoError(t, s.Delete(core.ProviderGoogle))

	got, err := s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Load(core.ProviderOutlook)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rt-outlook", got.Token.RefreshToken)
}

func TestFileStorePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connections.json")
	s := NewFileStore(path)
	require.NoError(t, s.Save(sampleConnection(core.ProviderGoogle)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "atomic replace leaves no temp files behind")
}

func TestFileStoreSavePreservesOthers(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "connections.json"))
	require.NoError(t, s.Save(sampleConnection(core.ProviderGoogle)))

	updated := sampleConnection(core.ProviderGoogle)
	updated.Token.RefreshToken = "rt-rotated"
	require.NoError(t, s.Save(updated))

	got, err := s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "rt-rotated", got.Token.RefreshToken, "save replaces the record wholesale")
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	conn := sampleConnection(core.ProviderGoogle)
	require.NoError(t, s.Save(conn))

	conn.Account = "mutated@example.com"

	got, err := s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "google@example.com", got.Account, "store holds a copy, not the caller's pointer")

	got.Account = "mutated-again@example.com"
	again, err := s.Load(core.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "google@example.com", again.Account)
}

func TestDeleteMissingIsNoError(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "connections.json"))
	assert.NoError(t, s.Delete(core.ProviderOutlook))

	m := NewMemoryStore()
	assert.NoError(t, m.Delete(core.ProviderOutlook))
}
