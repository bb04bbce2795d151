package central

import (
	"sort"
	"sync"

	"github.com/voltbridge/voltbridge/internal/observability"
	"github.com/voltbridge/voltbridge/internal/session"
)

// Registry maps a point's self-reported identity to its live session. The
// identity is untrusted input: a second connection announcing the same
// identity wins (last writer), so removal scans by session equality rather
// than trusting the key.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*session.Session
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*session.Session)}
}

func (r *Registry) Upsert(identity string, sess *session.Session) {
	r.mu.Lock()
	r.peers[identity] = sess
	n := len(r.peers)
	r.mu.Unlock()
	observability.SetConnectedPoints(n)
}

func (r *Registry) Lookup(identity string) (*session.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.peers[identity]
	return sess, ok
}

// RemoveSession deletes every entry pointing at sess. An identity that was
// overwritten by a newer connection keeps its newer session.
func (r *Registry) RemoveSession(sess *session.Session) {
	r.mu.Lock()
	for identity, live := range r.peers {
		if live == sess {
			delete(r.peers, identity)
		}
	}
	n := len(r.peers)
	r.mu.Unlock()
	observability.SetConnectedPoints(n)
}

// Identities returns registered identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for identity := range r.peers {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
