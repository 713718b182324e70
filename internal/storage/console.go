package storage

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleStorage logs audit records instead of persisting them. Default when
// no database is configured.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	return &ConsoleStorage{logger: logger}
}

// StoreAuction logs a created auction session.
func (c *ConsoleStorage) StoreAuction(_ context.Context, rec *AuctionRecord) error {
	c.logger.Info("audit-auction",
		zap.String("auction-id", rec.AuctionID),
		zap.String("maker", rec.Maker),
		zap.String("wager", rec.Wager),
		zap.Int("legs", rec.LegCount),
		zap.Bool("attested", rec.Attested))
	return nil
}

// StoreBid logs an accepted bid.
func (c *ConsoleStorage) StoreBid(_ context.Context, rec *BidRecord) error {
	c.logger.Info("audit-bid",
		zap.String("auction-id", rec.AuctionID),
		zap.String("taker", rec.Taker),
		zap.String("wager", rec.Wager),
		zap.Time("deadline", rec.Deadline))
	return nil
}

// StoreMatch logs a matched auction.
func (c *ConsoleStorage) StoreMatch(_ context.Context, rec *MatchRecord) error {
	c.logger.Info("audit-match",
		zap.String("auction-id", rec.AuctionID),
		zap.String("maker", rec.Maker),
		zap.String("taker", rec.Taker),
		zap.String("taker-wager", rec.TakerWager),
		zap.String("reference-code", rec.ReferenceCode))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	return nil
}
