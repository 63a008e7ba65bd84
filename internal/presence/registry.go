// Package presence tracks which users currently hold a live realtime
// connection. The registry is entirely transient: it is rebuilt from empty on
// process restart and clients re-establish presence on reconnect.
package presence

import (
	"sort"
	"sync"
)

// Registry maps user IDs to their active connection ID. At most one entry is
// kept per user; a new connection for the same user replaces the prior one
// (last-connect-wins).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connectionID
	byConn map[string]string // connectionID -> userID
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register records connID as the active connection for userID, replacing any
// existing entry for that user.
func (r *Registry) Register(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok {
		delete(r.byConn, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
}

// Unregister removes the entry owned by connID, if any, and reports whether a
// removal occurred. A stale connection ID that was already replaced by a newer
// connection for the same user is a no-op.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
	}
	return true
}

// Lookup returns the active connection ID for userID
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	return connID, ok
}

// OnlineUserIDs returns a sorted snapshot of all currently registered users
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser))
	for userID := range r.byUser {
		ids = append(ids, userID)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of online users
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
