package service

import (
	"sync"

	"github.com/nordbay-events/sponsorreg/internal/allocator"
)

// sessionStore keeps in-progress wizard sessions in memory. Each
// session belongs to one user; the lock only guards the map itself.
// Sessions vanish on submission or process restart.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*allocator.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*allocator.Session)}
}

func (st *sessionStore) put(id string, sess *allocator.Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[id] = sess
}

func (st *sessionStore) get(id string) (*allocator.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

func (st *sessionStore) delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}
