package services

import "sync"

// SessionLocks hands out one read-write lock per session id.
// Locks are created on first use and live for the life of the process.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

// NewSessionLocks creates an empty lock map.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sync.RWMutex)}
}

// Lock takes the session's write lock and returns its release function.
func (l *SessionLocks) Lock(sessionID string) func() {
	m := l.get(sessionID)
	m.Lock()
	return m.Unlock
}

// RLock takes the session's read lock and returns its release function.
func (l *SessionLocks) RLock(sessionID string) func() {
	m := l.get(sessionID)
	m.RLock()
	return m.RUnlock
}

func (l *SessionLocks) get(sessionID string) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.RWMutex{}
		l.locks[sessionID] = m
	}
	return m
}
