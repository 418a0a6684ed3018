package lib

import "sync"

const StateAwaitingPhone = "awaiting_phone"

// Session is the transient conversation state of one chat. Lives only in
// this process; an admin cache flush or a restart drops it.
type Session struct {
    State     string
    TaskID    string
    MessageID int
    User      *User
}

type Sessions struct {
    mu sync.RWMutex
    m  map[int64]Session
}

func NewSessions() *Sessions {
    return &Sessions{m: map[int64]Session{}}
}

func (s *Sessions) Get(id int64) (Session, bool) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    sess, ok := s.m[id]
    return sess, ok
}

func (s *Sessions) Set(id int64, sess Session) {
    s.mu.Lock()
    s.m[id] = sess
    s.mu.Unlock()
}

// SetUser keeps the rest of the session intact.
func (s *Sessions) SetUser(id int64, u *User) {
    s.mu.Lock()
    sess := s.m[id]
    sess.User = u
    s.m[id] = sess
    s.mu.Unlock()
}

func (s *Sessions) Clear(id int64) {
    s.mu.Lock()
    delete(s.m, id)
    s.mu.Unlock()
}

func (s *Sessions) ClearAll() {
    s.mu.Lock()
    s.m = map[int64]Session{}
    s.mu.Unlock()
}

// PatchUserAccess updates the cached user record of any live session so an
// access change is visible without a fresh store lookup.
func (s *Sessions) PatchUserAccess(userID, access string) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for id, sess := range s.m {
        if sess.User != nil && sess.User.ID == userID {
            u := *sess.User
            u.Access = access
            sess.User = &u
            s.m[id] = sess
        }
    }
}
