// Package session holds the signed-in identity the client toolkit sends with
// every request. Consumers read it through a Provider instead of a global so
// a sign-in or sign-out can be observed.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is the persisted identity: the bearer token plus the profile shown
// to the user.
type Session struct {
	BaseURL   string    `json:"base_url,omitempty"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the session carries an unexpired token.
func (s Session) Valid(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Provider exposes the current session and change notifications.
type Provider interface {
	Current() Session
	// Subscribe calls fn after every change; the returned func unsubscribes.
	Subscribe(fn func(Session)) (cancel func())
}

// Static is a fixed session, for scripts and tests.
type Static struct {
	session Session
}

func NewStatic(s Session) *Static {
	return &Static{session: s}
}

func (s *Static) Current() Session { return s.session }

func (s *Static) Subscribe(func(Session)) func() { return func() {} }

// FileStore persists the session as JSON on disk and notifies subscribers on
// Save and Clear.
type FileStore struct {
	path string

	mu      sync.RWMutex
	current Session
	subs    map[int]func(Session)
	nextID  int
}

// DefaultPath is <user config dir>/quotectl/session.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "quotectl", "session.json"), nil
}

// OpenFileStore loads path if it exists; a missing file is an empty session.
func OpenFileStore(path string) (*FileStore, error) {
	store := &FileStore{path: path, subs: map[int]func(Session){}}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(raw, &store.current); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	return store, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Current() Session {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

func (f *FileStore) Subscribe(fn func(Session)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Save writes the session with owner-only permissions. The file is replaced
// atomically so a crash never leaves half a token behind.
func (f *FileStore) Save(s Session) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	f.set(s)
	return nil
}

// Clear removes the stored session.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	f.set(Session{})
	return nil
}

func (f *FileStore) set(s Session) {
	f.mu.Lock()
	f.current = s
	subs := make([]func(Session), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}
