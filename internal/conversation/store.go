package conversation

import (
	"sync"
)

// session pairs a context with the mutex that serializes its writers.
type session struct {
	mu  sync.Mutex
	ctx *Context
}

// Store keeps one Context per session id. Writes on the same session are
// serialized; different sessions proceed independently. Contexts are
// never shared between sessions. State lives in memory only.
type Store struct {
	mu       sync.RWMutex
	opts     Options
	sessions map[string]*session
}

// NewStore creates an empty Store whose new sessions use opts.
func NewStore(opts Options) (*Store, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Store{opts: opts, sessions: make(map[string]*session)}, nil
}

// get returns the session for id, creating it when create is set.
func (s *Store) get(id string, create bool) *session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok || !create {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[id]; ok {
		return sess
	}
	sess = &session{ctx: &Context{opts: s.opts, now: timeSource}}
	s.sessions[id] = sess
	return sess
}

// Update runs fn with exclusive access to the context of session id,
// creating an empty context on first use. fn must not retain the context.
func (s *Store) Update(id string, fn func(c *Context) error) error {
	sess := s.get(id, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.ctx)
}

// Snapshot returns a copy of the session's context.
func (s *Store) Snapshot(id string) (Snapshot, bool) {
	sess := s.get(id, false)
	if sess == nil {
		return Snapshot{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.ctx.Snapshot(), true
}

// Restore replaces the context of session id with one rebuilt from snap.
func (s *Store) Restore(id string, snap Snapshot) error {
	c, err := FromSnapshot(snap)
	if err != nil {
		return err
	}
	sess := s.get(id, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ctx = c
	return nil
}

// Delete discards the session. A writer already inside Update finishes
// on the detached context.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
