package app

import (
	"sync"
	"time"
)

// renameFlagWindow is how long a session keeps its JustRenamed flag before the
// store clears it again.
const renameFlagWindow = 900 * time.Millisecond

// SessionStore holds the ordered session list backing the sidebar. Insertion
// order is preserved; upserts update entries in place. It is safe for use from
// UI commands and timer callbacks at the same time.
type SessionStore struct {
	mu       sync.Mutex
	sessions []Session
	timers   map[string]*time.Timer

	clearDelay time.Duration
	onChange   func()
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		timers:     make(map[string]*time.Timer),
		clearDelay: renameFlagWindow,
	}
}

// SetOnChange registers a callback invoked whenever a timer mutates the store
// outside a direct call (the rename flag clearing). The callback runs on the
// timer goroutine, so it should only signal, not render.
func (s *SessionStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Upsert prepends item when its id is unknown, otherwise merges the non-empty
// fields into the existing entry without moving it.
func (s *SessionStore) Upsert(item Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != item.ID {
			continue
		}
		if item.Title != "" {
			s.sessions[i].Title = item.Title
		}
		if item.Mode != "" {
			s.sessions[i].Mode = item.Mode
		}
		return
	}
	s.sessions = append([]Session{item}, s.sessions...)
}

// Rename sets a new title and raises the JustRenamed flag for the animation
// window. A rename to an unchanged display title is a no-op so the animation
// does not retrigger. Returns whether anything changed.
func (s *SessionStore) Rename(id, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != id {
			continue
		}
		if ClampTitle(s.sessions[i].Title) == ClampTitle(title) {
			return false
		}
		s.sessions[i].Title = title
		s.sessions[i].JustRenamed = true
		s.scheduleClearLocked(id)
		return true
	}
	return false
}

// scheduleClearLocked arms the flag-clear timer for id, replacing any pending
// one so the newest rename owns the window.
func (s *SessionStore) scheduleClearLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.clearDelay, func() {
		s.clearRenamed(id)
	})
}

func (s *SessionStore) clearRenamed(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	touched := false
	for i := range s.sessions {
		if s.sessions[i].ID == id && s.sessions[i].JustRenamed {
			s.sessions[i].JustRenamed = false
			touched = true
		}
	}
	fn := s.onChange
	s.mu.Unlock()

	if touched && fn != nil {
		fn()
	}
}

// Remove drops the entry for id. Removing an unknown id is fine.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			return
		}
	}
}

// Replace swaps in a freshly fetched session list, e.g. after a mode switch.
func (s *SessionStore) Replace(list []Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append([]Session(nil), list...)
}

// ListByMode returns the sessions whose mode matches, in store order.
func (s *SessionStore) ListByMode(mode Mode) []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Session
	for _, sess := range s.sessions {
		if sess.Mode == mode {
			out = append(out, sess)
		}
	}
	return out
}

func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return Session{}, false
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops any pending flag-clear timers.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
