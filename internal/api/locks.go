package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// SessionLocks admits one mutating request per session at a time. Handlers
// that read a session, do slow work and save it back must hold the lock.
type SessionLocks struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewSessionLocks() *SessionLocks {
	return &SessionLocks{active: make(map[string]struct{})}
}

// TryAcquire reports whether the caller now owns the session.
func (l *SessionLocks) TryAcquire(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.active[sessionID]; busy {
		return false
	}
	l.active[sessionID] = struct{}{}
	return true
}

func (l *SessionLocks) Release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, sessionID)
}

// acquireOrConflict takes the session lock or answers 409.
func acquireOrConflict(c *gin.Context, locks *SessionLocks, sessionID string) bool {
	if locks.TryAcquire(sessionID) {
		return true
	}
	c.JSON(http.StatusConflict, gin.H{"error": "another request is already updating this session"})
	return false
}
