// Package store persists application state as JSON documents.
//
// Each document is an independent keyed file under the state directory,
// loaded once at startup and rewritten in full on every mutation. There
// are no partial updates and no transactions; cross-document consistency
// is a recoverable condition handled by the callers.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
)

// Document names used by qbot.
const (
	DocUsers       = "users.json"
	DocPlayback    = "playback.json"
	DocChannels    = "channels.json"
	DocMessages    = "messages.json"
	DocOAuthStates = "oauth_states.json"
)

// Store reads and writes JSON documents in a single directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create state directory")
	}
	return &Store{dir: dir}, nil
}

// Load unmarshals the named document into v. A missing document leaves
// v untouched so callers start from their zero value.
func (s *Store) Load(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read %s", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse %s", name)
	}
	return nil
}

// Save rewrites the named document with the marshalled value of v.
func (s *Store) Save(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", name)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}
	return nil
}
