// client/session.go
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agent-mission-system/models"
)

// ErrStorageWrite means the session file could not be persisted. Callers treat
// it as non-fatal: the in-memory state stays valid, only the cache is lost.
var ErrStorageWrite = errors.New("session write failed")

const sessionFileName = "agent_session.json"

// LocalSession is a client-local cache of the current identity. The remote
// ledger stays authoritative; this exists so the UI can render without a
// round trip.
type LocalSession struct {
	Agent      models.Agent `json:"agent"`
	LastSyncAt time.Time    `json:"last_sync_at"`
}

// SessionStore persists one LocalSession as a JSON blob under a fixed path.
type SessionStore struct {
	path string
}

func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{path: filepath.Join(dir, sessionFileName)}
}

// Load reads the cached session. Absent or unparseable data returns nil —
// a corrupt cache is treated as no cache, never as a fatal condition.
func (s *SessionStore) Load() *LocalSession {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var session LocalSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil
	}
	if session.Agent.ID == "" {
		return nil
	}
	return &session
}

// Save overwrites the stored session.
func (s *SessionStore) Save(session *LocalSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

// Clear removes the cached session. Clearing an empty store is a no-op.
func (s *SessionStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}
