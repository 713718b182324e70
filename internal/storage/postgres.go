package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreAuction records a created auction session.
func (p *PostgresStorage) StoreAuction(ctx context.Context, rec *AuctionRecord) error {
	query := `
		INSERT INTO auctions (
			auction_id, maker, wager, resolver, leg_count, maker_nonce, attested, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.AuctionID,
		rec.Maker,
		rec.Wager,
		rec.Resolver,
		rec.LegCount,
		rec.Nonce,
		rec.Attested,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}

	p.logger.Debug("auction-stored", zap.String("auction-id", rec.AuctionID))
	return nil
}

// StoreBid records an accepted bid.
func (p *PostgresStorage) StoreBid(ctx context.Context, rec *BidRecord) error {
	query := `
		INSERT INTO bids (
			auction_id, taker, wager, deadline, taker_nonce, received_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.AuctionID,
		rec.Taker,
		rec.Wager,
		rec.Deadline,
		rec.Nonce,
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	p.logger.Debug("bid-stored",
		zap.String("auction-id", rec.AuctionID),
		zap.String("taker", rec.Taker))
	return nil
}

// StoreMatch records a matched auction and its prepared settlement payload.
func (p *PostgresStorage) StoreMatch(ctx context.Context, rec *MatchRecord) error {
	query := `
		INSERT INTO matches (
			auction_id, maker, taker, maker_wager, taker_wager,
			reference_code, calldata, matched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.AuctionID,
		rec.Maker,
		rec.Taker,
		rec.MakerWager,
		rec.TakerWager,
		rec.ReferenceCode,
		rec.Calldata,
		rec.MatchedAt,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	p.logger.Debug("match-stored",
		zap.String("auction-id", rec.AuctionID),
		zap.String("taker", rec.Taker))
	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
