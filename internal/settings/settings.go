// Package settings persists the small pieces of sync state that must
// survive restarts: per-calendar sync cursors, the enabled-calendar
// selection, and connected account labels. Tokens do not live here;
// they belong to the auth connection store.
package settings

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/theakshaypant/calbridge/internal/core"
)

// state is the on-disk shape. Cursor keys are "provider/calendarID".
type state struct {
	Cursors          map[string]string   `yaml:"cursors,omitempty"`
	EnabledCalendars map[string][]string `yaml:"enabled_calendars,omitempty"`
	Accounts         map[string]string   `yaml:"accounts,omitempty"`
}

// Store is a file-backed settings store. Every mutation rewrites the
// whole file through a temp-file rename, so readers never observe a
// partial write.
type Store struct {
	mu    sync.Mutex
	path  string
	state state
}

// DefaultPath resolves the state file under the XDG state directory.
func DefaultPath() (string, error) {
	return xdg.StateFile("calbridge/state.yaml")
}

// Open loads the store at path, starting empty if the file does not
// exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, state: state{
		Cursors:          map[string]string{},
		EnabledCalendars: map[string][]string{},
		Accounts:         map[string]string{},
	}}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read settings %s", path)
	}
	if err := yaml.Unmarshal(raw, &s.state); err != nil {
		return nil, errors.Wrapf(err, "parse settings %s", path)
	}
	if s.state.Cursors == nil {
		s.state.Cursors = map[string]string{}
	}
	if s.state.EnabledCalendars == nil {
		s.state.EnabledCalendars = map[string][]string{}
	}
	if s.state.Accounts == nil {
		s.state.Accounts = map[string]string{}
	}
	return s, nil
}

func cursorKey(p core.Provider, calendarID string) string {
	return string(p) + "/" + calendarID
}

// Cursor returns the persisted sync cursor for (provider, calendar),
// or "" when none is stored.
func (s *Store) Cursor(p core.Provider, calendarID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Cursors[cursorKey(p, calendarID)]
}

// SetCursor persists a new cursor. An empty cursor clears the entry.
func (s *Store) SetCursor(p core.Provider, calendarID, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cursor == "" {
		delete(s.state.Cursors, cursorKey(p, calendarID))
	} else {
		s.state.Cursors[cursorKey(p, calendarID)] = cursor
	}
	return s.save()
}

// ClearCursors drops every cursor for a provider. Used on disconnect.
func (s *Store) ClearCursors(p core.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := string(p) + "/"
	for k := range s.state.Cursors {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.state.Cursors, k)
		}
	}
	return s.save()
}

// EnabledCalendars returns the calendar ids selected for syncing.
func (s *Store) EnabledCalendars(p core.Provider) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.state.EnabledCalendars[string(p)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// SetEnabledCalendars replaces the enabled set for a provider.
func (s *Store) SetEnabledCalendars(p core.Provider, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.EnabledCalendars[string(p)] = append([]string(nil), ids...)
	return s.save()
}

// Account returns the connected account label (email), or "".
func (s *Store) Account(p core.Provider) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Accounts[string(p)]
}

// SetAccount records the connected account label.
func (s *Store) SetAccount(p core.Provider, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account == "" {
		delete(s.state.Accounts, string(p))
	} else {
		s.state.Accounts[string(p)] = account
	}
	return s.save()
}

// save writes the whole state through a temp file and rename.
// Callers hold s.mu.
func (s *Store) save() error {
	raw, err := yaml.Marshal(&s.state)
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create settings dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return errors.Wrap(err, "create temp settings file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write settings")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close settings file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace settings %s", s.path)
	}
	return nil
}
