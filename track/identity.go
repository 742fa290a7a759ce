// track/identity.go
package track

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// User is the persistent client identity. It survives across sessions and
// rotates only when its storage scope is explicitly cleared.
type User struct {
	ID            string `json:"id"`
	FirstSeen     int64  `json:"firstSeen"` // epoch millis
	TotalSessions int    `json:"totalSessions"`
	TotalEvents   int    `json:"totalEvents"`
}

// Session is one visit window, TTL-bounded on LastActivity.
type Session struct {
	ID           string `json:"id"`
	StartedAt    int64  `json:"startedAt"` // epoch millis
	LastActivity int64  `json:"lastActivity"`
	PageViews    int    `json:"pageViews"`
}

// identityStore persists User in the durable scope and Session in the
// per-visit scope. Any storage failure (missing dir, quota, permissions)
// degrades silently to in-memory identity for this process.
type identityStore struct {
	userPath    string
	sessionPath string
	timeout     time.Duration
	now         func() time.Time
}

func newIdentityStore(cfg Config) *identityStore {
	s := &identityStore{
		timeout: cfg.SessionTimeout,
		now:     time.Now,
	}
	if cfg.StateDir != "" {
		s.userPath = filepath.Join(cfg.StateDir, "pulsetrack_user.json")
	}
	if cfg.SessionDir != "" {
		s.sessionPath = filepath.Join(cfg.SessionDir, "pulsetrack_session.json")
	}
	return s
}

// getOrCreateUser loads or mints the persistent identity and counts this
// page load as a new session for it.
func (s *identityStore) getOrCreateUser() User {
	user := User{}
	if !readJSON(s.userPath, &user) || user.ID == "" {
		user = User{
			ID:        newID(),
			FirstSeen: s.now().UnixMilli(),
		}
	}
	user.TotalSessions++
	writeJSON(s.userPath, user)
	return user
}

// getOrCreateSession reuses the stored session when it is still inside the
// idle timeout, refreshing activity and counting a page view; otherwise it
// mints a fresh session id.
func (s *identityStore) getOrCreateSession() Session {
	nowMillis := s.now().UnixMilli()

	sess := Session{}
	ok := readJSON(s.sessionPath, &sess)
	expired := nowMillis-sess.LastActivity > s.timeout.Milliseconds()
	if !ok || sess.ID == "" || expired {
		sess = Session{
			ID:        newID(),
			StartedAt: nowMillis,
		}
	}
	sess.LastActivity = nowMillis
	sess.PageViews++
	writeJSON(s.sessionPath, sess)
	return sess
}

// saveUser persists counter updates; failures are ignored.
func (s *identityStore) saveUser(user User) {
	writeJSON(s.userPath, user)
}

// clearUser removes the persistent identity so the next load mints a new
// one.
func (s *identityStore) clearUser() {
	if s.userPath != "" {
		os.Remove(s.userPath)
	}
}

func readJSON(path string, v any) bool {
	if path == "" {
		return false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func writeJSON(path string, v any) {
	if path == "" {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// Best effort: identity must never fail event capture.
	_ = os.WriteFile(path, raw, 0o644)
}

func newID() string {
	return uuid.NewString()
}
