package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"

	"github.com/theakshaypant/calbridge/internal/core"
)

// Connection is the persisted record for one provider: the current
// token plus connection bookkeeping. It is replaced wholesale on every
// refresh so a reader can never observe a half-written record.
type Connection struct {
	Provider    core.Provider `json:"provider"`
	Token       *oauth2.Token `json:"token"`
	Account     string        `json:"account,omitempty"`
	ConnectedAt time.Time     `json:"connected_at"`
	LastRefresh time.Time     `json:"last_refresh,omitempty"`
}

// ConnectionStore persists connections. Load returns (nil, nil) when
// no connection exists for the provider.
type ConnectionStore interface {
	Load(p core.Provider) (*Connection, error)
	Save(conn *Connection) error
	Delete(p core.Provider) error
}

const keyringService = "calbridge"

func keyringUser(p core.Provider) string { return "oauth:" + string(p) }

// KeyringStore keeps connections in the OS keychain, encrypted at
// rest by the platform.
type KeyringStore struct{}

var _ ConnectionStore = KeyringStore{}

// Available probes whether the OS keyring is usable in this session
// (it is not on headless machines without a secret service).
func (KeyringStore) Available() bool {
	_, err := keyring.Get(keyringService, keyringUser(core.ProviderGoogle))
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

func (KeyringStore) Load(p core.Provider) (*Connection, error) {
	raw, err := keyring.Get(keyringService, keyringUser(p))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load %s connection from keyring", p)
	}
	var conn Connection
	if err := json.Unmarshal([]byte(raw), &conn); err != nil {
		return nil, errors.Wrapf(err, "decode %s connection", p)
	}
	return &conn, nil
}

func (KeyringStore) Save(conn *Connection) error {
	raw, err := json.Marshal(conn)
	if err != nil {
		return errors.Wrap(err, "encode connection")
	}
	if err := keyring.Set(keyringService, keyringUser(conn.Provider), string(raw)); err != nil {
		return errors.Wrapf(err, "save %s connection to keyring", conn.Provider)
	}
	return nil
}

func (KeyringStore) Delete(p core.Provider) error {
	err := keyring.Delete(keyringService, keyringUser(p))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrapf(err, "delete %s connection from keyring", p)
	}
	return nil
}

// FileStore is the fallback when no keyring is available: a 0600 JSON
// file under the XDG state directory, replaced atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ ConnectionStore = (*FileStore)(nil)

// NewFileStore opens a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(p core.Provider) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return nil, err
	}
	conn, ok := all[p]
	if !ok {
		return nil, nil
	}
	return conn, nil
}

func (s *FileStore) Save(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	all[conn.Provider] = conn
	return s.write(all)
}

func (s *FileStore) Delete(p core.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.read()
	if err != nil {
		return err
	}
	delete(all, p)
	return s.write(all)
}

func (s *FileStore) read() (map[core.Provider]*Connection, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[core.Provider]*Connection{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read connections %s", s.path)
	}
	var all map[core.Provider]*Connection
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, errors.Wrapf(err, "parse connections %s", s.path)
	}
	if all == nil {
		all = map[core.Provider]*Connection{}
	}
	return all, nil
}

func (s *FileStore) write(all map[core.Provider]*Connection) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return errors.Wrap(err, "encode connections")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create state dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".connections-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp connections file")
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod connections file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write connections")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close connections file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "replace connections %s", s.path)
	}
	return nil
}

// MemoryStore is an in-memory ConnectionStore for tests.
type MemoryStore struct {
	mu    sync.Mutex
	conns map[core.Provider]*Connection
}

var _ ConnectionStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conns: map[core.Provider]*Connection{}}
}

func (s *MemoryStore) Load(p core.Provider) (*Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[p]
	if !ok {
		return nil, nil
	}
	cp := *conn
	return &cp, nil
}

func (s *MemoryStore) Save(conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conn
	s.conns[conn.Provider] = &cp
	return nil
}

func (s *MemoryStore) Delete(p core.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, p)
	return nil
}

// DefaultStore picks the keyring when it is usable and falls back to
// the XDG state file otherwise.
func DefaultStore() (ConnectionStore, error) {
	ks := KeyringStore{}
	if ks.Available() {
		return ks, nil
	}
	path, err := xdg.StateFile("calbridge/connections.json")
	if err != nil {
		return nil, errors.Wrap(err, "resolve connections path")
	}
	return NewFileStore(path), nil
}
