package auction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Leg is a single predicted outcome inside a parlay: the market being
// predicted and the direction of the prediction.
type Leg struct {
	MarketID [32]byte
	Outcome  bool
}

// IntentKind distinguishes attested maker intents from the unsigned degraded
// path. Only attested intents may ever reach settlement preparation.
type IntentKind int

const (
	// IntentAttested carries a SIWE-style signature over the auction terms.
	IntentAttested IntentKind = iota

	// IntentUnattested is the unsigned variant accepted for testing and
	// display flows. It can open an auction but never settle one.
	IntentUnattested
)

// MakerIntent is the maker's immutable auction request after wire-boundary
// translation. Field names here are role-correct; the wire payload reuses the
// shared taker-shaped field names (see pkg/types).
type MakerIntent struct {
	Maker     common.Address
	Wager     *big.Int
	Resolver  common.Address
	Legs      []Leg
	Nonce     uint64
	Kind      IntentKind
	Signature []byte
	SignedAt  time.Time
}

// Attested reports whether the intent carries a maker signature.
func (m *MakerIntent) Attested() bool {
	return m.Kind == IntentAttested
}

// TakerBid is a taker's counter-offer after wire-boundary translation.
// Bids are immutable once accepted into a session.
type TakerBid struct {
	Taker      common.Address
	Wager      *big.Int
	Deadline   time.Time
	Nonce      uint64
	Signature  []byte
	ReceivedAt time.Time
}

// Expired reports whether the bid's own deadline has passed. Expired bids
// stay in the session history but never participate in selection.
func (b *TakerBid) Expired(now time.Time) bool {
	return !b.Deadline.After(now)
}

// State is the auction session lifecycle state.
type State int

const (
	StateOpen State = iota
	StateMatched
	StateExpired
	StateCancelled
)

// Terminal reports whether no further bids are accepted in this state.
func (s State) Terminal() bool {
	return s != StateOpen
}

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateMatched:
		return "matched"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
