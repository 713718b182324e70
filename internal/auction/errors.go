package auction

import "errors"

var (
	// ErrClosed is returned when a message addresses a session in a
	// terminal state.
	ErrClosed = errors.New("auction closed")

	// ErrStaleNonce is returned when a submitted nonce does not match the
	// authoritative contract counter, or when a taker reuses a nonce
	// already consumed by one of its accepted bids in the same auction.
	ErrStaleNonce = errors.New("stale nonce")

	// ErrInvalidSignature is returned when the recovered signer does not
	// equal the claimed address.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidWager is returned for zero or negative wager amounts.
	ErrInvalidWager = errors.New("wager must be positive")

	// ErrNotFound is returned for an unknown auction id.
	ErrNotFound = errors.New("auction not found")

	// ErrNoEligibleBids is returned by a match attempt when every bid in
	// the session is past its deadline or the session has no bids.
	ErrNoEligibleBids = errors.New("no eligible bids")

	// ErrNotStarter is returned when a cancellation comes from a
	// connection other than the one that opened the auction.
	ErrNotStarter = errors.New("only the starting connection may cancel")
)
