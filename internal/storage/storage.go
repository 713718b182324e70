package storage

import (
	"context"
	"time"
)

// AuctionRecord is the audit row for a created auction session.
type AuctionRecord struct {
	AuctionID string
	Maker     string
	Wager     string
	Resolver  string
	LegCount  int
	Nonce     uint64
	Attested  bool
	CreatedAt time.Time
}

// BidRecord is the audit row for an accepted bid.
type BidRecord struct {
	AuctionID  string
	Taker      string
	Wager      string
	Deadline   time.Time
	Nonce      uint64
	ReceivedAt time.Time
}

// MatchRecord is the audit row for a matched auction, including the prepared
// settlement calldata so an operator can replay an unsubmitted settlement.
type MatchRecord struct {
	AuctionID     string
	Maker         string
	Taker         string
	MakerWager    string
	TakerWager    string
	ReferenceCode string
	Calldata      []byte
	MatchedAt     time.Time
}

// Storage is the audit sink for the relayer. Failures here are logged by the
// caller and never fail the protocol path.
type Storage interface {
	// StoreAuction records a created auction session.
	StoreAuction(ctx context.Context, rec *AuctionRecord) error

	// StoreBid records an accepted bid.
	StoreBid(ctx context.Context, rec *BidRecord) error

	// StoreMatch records a matched auction and its settlement payload.
	StoreMatch(ctx context.Context, rec *MatchRecord) error

	// Close closes the storage connection.
	Close() error
}
