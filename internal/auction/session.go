package auction

import (
	"sync"
	"time"
)

// Session is the state machine for one auction. All mutation goes through the
// session mutex, so concurrent bids on the same auction are totally ordered
// by server receipt. The bid list is append-only; accepted bids are never
// replaced or mutated.
type Session struct {
	ID        string
	Intent    MakerIntent
	CreatedAt time.Time

	// Deadline is the maker-side cutoff: when it passes, the session is
	// matched against its best eligible bid or expired if none remains.
	Deadline time.Time

	starterID string

	mu          sync.Mutex
	state       State
	bids        []TakerBid
	winner      *TakerBid
	closedAt    time.Time
	subscribers map[string]struct{}
}

// NewSession creates an Open session owning the given maker intent.
// starterID identifies the connection that opened the auction; only that
// connection may cancel it.
func NewSession(id string, intent MakerIntent, starterID string, now time.Time, ttl time.Duration) *Session {
	SessionsCreatedTotal.Inc()

	return &Session{
		ID:          id,
		Intent:      intent,
		CreatedAt:   now,
		Deadline:    now.Add(ttl),
		starterID:   starterID,
		state:       StateOpen,
		subscribers: make(map[string]struct{}),
	}
}

// AcceptBid appends a bid to the session under the acceptance policy and
// returns the updated bid list for broadcast. The bid's signature must have
// been verified by the caller before commit; nothing here partially mutates
// state on rejection.
func (s *Session) AcceptBid(bid TakerBid) ([]TakerBid, error) {
	if bid.Wager == nil || bid.Wager.Sign() <= 0 {
		return nil, ErrInvalidWager
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return nil, ErrClosed
	}

	// A taker may not reuse a nonce already consumed by one of its
	// accepted bids in this auction.
	for i := range s.bids {
		if s.bids[i].Taker == bid.Taker && s.bids[i].Nonce == bid.Nonce {
			return nil, ErrStaleNonce
		}
	}

	s.bids = append(s.bids, bid)
	BidsAcceptedTotal.Inc()

	return s.snapshotLocked(), nil
}

// Match transitions Open -> Matched using the best eligible bid at now.
// Matching is idempotent: once matched, repeated calls return the same
// winning bid so racing finalizers always get a consistent answer.
func (s *Session) Match(now time.Time) (*TakerBid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateMatched {
		winner := *s.winner
		return &winner, nil
	}

	if s.state.Terminal() {
		return nil, ErrClosed
	}

	best := SelectBest(s.bids, now)
	if best == nil {
		return nil, ErrNoEligibleBids
	}

	s.winner = best
	s.state = StateMatched
	s.closedAt = now
	MatchesTotal.Inc()

	winner := *best
	return &winner, nil
}

// ExpireIfDue transitions Open -> Expired when the session deadline has
// passed without a match. Returns true when the transition happened on this
// call.
func (s *Session) ExpireIfDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen || now.Before(s.Deadline) {
		return false
	}

	s.state = StateExpired
	s.closedAt = now
	ExpiriesTotal.Inc()

	return true
}

// Cancel transitions Open -> Cancelled. Only the connection that started the
// auction may cancel it.
func (s *Session) Cancel(connID string, now time.Time) error {
	if connID != s.starterID {
		return ErrNotStarter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return ErrClosed
	}

	s.state = StateCancelled
	s.closedAt = now
	CancellationsTotal.Inc()

	return nil
}

// Subscribe adds a connection to the session's broadcast set.
func (s *Session) Subscribe(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[connID] = struct{}{}
}

// Unsubscribe removes a connection from the session's broadcast set. Dropped
// connections only ever remove their subscription entry, never session state.
func (s *Session) Unsubscribe(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers, connID)
}

// Subscribers returns the current subscriber connection ids.
func (s *Session) Subscribers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the state and a copy of the full bid history.
func (s *Session) Snapshot() (State, []TakerBid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.snapshotLocked()
}

// Winner returns the matched bid, if any.
func (s *Session) Winner() (*TakerBid, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.winner == nil {
		return nil, false
	}
	winner := *s.winner
	return &winner, true
}

// TerminalSince reports when the session reached a terminal state, used by
// the store's retention sweep.
func (s *Session) TerminalSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Terminal() {
		return time.Time{}, false
	}
	return s.closedAt, true
}

func (s *Session) snapshotLocked() []TakerBid {
	out := make([]TakerBid, len(s.bids))
	copy(out, s.bids)
	return out
}
