package concurrency

import "sync"

// SessionLockManager serializes per-session turn processing. Locks are keyed
// by session ID so distinct sessions never contend with each other.
type SessionLockManager struct {
	locks map[string]*sessionLock
	mu    sync.Mutex
}

type sessionLock struct {
	mu sync.Mutex
	// holders counts callers that have entered Lock and not yet left
	// Unlock. Forget only drops an entry nobody holds or waits on.
	holders int
}

func NewSessionLockManager() *SessionLockManager {
	return &SessionLockManager{
		locks: make(map[string]*sessionLock),
	}
}

func (m *SessionLockManager) Lock(sessionID string) {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		m.locks[sessionID] = lock
	}
	lock.holders++
	m.mu.Unlock()
	lock.mu.Lock()
}

func (m *SessionLockManager) Unlock(sessionID string) {
	m.mu.Lock()
	lock, ok := m.locks[sessionID]
	if ok {
		lock.holders--
	}
	m.mu.Unlock()
	if ok {
		lock.mu.Unlock()
	}
}

// Forget drops the lock entry for a session that has ended. The entry
// survives while any caller still holds or waits on it, so late turns of the
// same session keep excluding each other. Callers must not hold the lock when
// calling Forget.
func (m *SessionLockManager) Forget(sessionID string) {
	m.mu.Lock()
	if lock, ok := m.locks[sessionID]; ok && lock.holders == 0 {
		delete(m.locks, sessionID)
	}
	m.mu.Unlock()
}
