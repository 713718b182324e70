package auction

import (
	"hash/fnv"
	"sync"
	"time"
)

const storeShards = 16

// Store owns the set of live sessions, sharded by auction id to bound lock
// contention. The relay is the single logical owner; connections only hold
// subscription entries inside the sessions themselves.
type Store struct {
	shards [storeShards]*storeShard
}

type storeShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	st := &Store{}
	for i := range st.shards {
		st.shards[i] = &storeShard{sessions: make(map[string]*Session)}
	}
	return st
}

func (st *Store) shard(auctionID string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(auctionID))
	return st.shards[h.Sum32()%storeShards]
}

// Put registers a session under its id.
func (st *Store) Put(sess *Session) {
	sh := st.shard(sess.ID)
	sh.mu.Lock()
	sh.sessions[sess.ID] = sess
	sh.mu.Unlock()

	LiveSessions.Inc()
}

// Get returns the session for an auction id.
func (st *Store) Get(auctionID string) (*Session, bool) {
	sh := st.shard(auctionID)
	sh.mu.RLock()
	sess, ok := sh.sessions[auctionID]
	sh.mu.RUnlock()
	return sess, ok
}

// Due returns Open sessions whose deadline has passed at now. The caller
// (the relay sweep) decides whether each one matches or expires.
func (st *Store) Due(now time.Time) []*Session {
	var due []*Session

	for _, sh := range st.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			if sess.State() == StateOpen && !now.Before(sess.Deadline) {
				due = append(due, sess)
			}
		}
		sh.mu.RUnlock()
	}

	return due
}

// EvictTerminal removes sessions that have been terminal for longer than the
// retention window and returns how many were evicted.
func (st *Store) EvictTerminal(now time.Time, retention time.Duration) int {
	evicted := 0

	for _, sh := range st.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			closedAt, terminal := sess.TerminalSince()
			if terminal && now.Sub(closedAt) >= retention {
				delete(sh.sessions, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}

	if evicted > 0 {
		LiveSessions.Sub(float64(evicted))
	}

	return evicted
}

// Range calls fn for every live session until fn returns false.
func (st *Store) Range(fn func(*Session) bool) {
	for _, sh := range st.shards {
		sh.mu.RLock()
		for _, sess := range sh.sessions {
			if !fn(sess) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Unsubscribe removes a dropped connection's subscription entries from every
// live session. Session state itself is never touched.
func (st *Store) Unsubscribe(connID string) {
	st.Range(func(sess *Session) bool {
		sess.Unsubscribe(connID)
		return true
	})
}
