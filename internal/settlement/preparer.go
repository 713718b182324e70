package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
)

var (
	// ErrUnsignedIntent rejects the unsigned degraded path at the
	// settlement boundary. Unsigned intents may open auctions for display
	// and testing but can never produce calldata.
	ErrUnsignedIntent = errors.New("unsigned intent cannot reach settlement")

	// ErrBidDeadlinePassed rejects a winning bid whose deadline lapsed
	// between receipt and settlement preparation.
	ErrBidDeadlinePassed = errors.New("winning bid deadline passed")
)

// mintABI is the settlement contract's entry point. The struct field order
// and types are fixed by the external ABI and must not be altered.
const mintABI = `[{"name":"mint","type":"function","stateMutability":"nonpayable","inputs":[{"name":"request","type":"tuple","components":[{"name":"maker","type":"address"},{"name":"makerWager","type":"uint256"},{"name":"taker","type":"address"},{"name":"takerWager","type":"uint256"},{"name":"resolver","type":"address"},{"name":"predictedOutcomes","type":"bytes"},{"name":"makerNonce","type":"uint256"},{"name":"takerNonce","type":"uint256"},{"name":"takerDeadline","type":"uint256"},{"name":"makerSignature","type":"bytes"},{"name":"takerSignature","type":"bytes"},{"name":"referenceCode","type":"bytes32"}]}],"outputs":[]}]`

// MintRequest mirrors the contract's request tuple.
type MintRequest struct {
	Maker             common.Address
	MakerWager        *big.Int
	Taker             common.Address
	TakerWager        *big.Int
	Resolver          common.Address
	PredictedOutcomes []byte
	MakerNonce        *big.Int
	TakerNonce        *big.Int
	TakerDeadline     *big.Int
	MakerSignature    []byte
	TakerSignature    []byte
	ReferenceCode     common.Hash
}

// Prepared is a settlement-ready call: the dual-signed request and the exact
// calldata the contract's mint entry point expects. Submission itself is an
// external concern.
type Prepared struct {
	AuctionID string
	To        common.Address
	Request   MintRequest
	Calldata  []byte
}

// NonceSource re-validates the winning taker's nonce against the chain at
// preparation time, since time may have passed since the bid was received.
type NonceSource interface {
	Fresh(ctx context.Context, address common.Address) (uint64, error)
}

// Preparer assembles mint calldata from a matched (intent, bid) pair.
type Preparer struct {
	contract common.Address
	nonces   NonceSource
	parsed   abi.ABI
	logger   *zap.Logger
}

// Config holds preparer configuration.
type Config struct {
	Contract common.Address
	Nonces   NonceSource
	Logger   *zap.Logger
}

// New creates a settlement preparer.
func New(cfg *Config) (*Preparer, error) {
	if cfg.Nonces == nil {
		return nil, errors.New("nonce source cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	parsed, err := abi.JSON(strings.NewReader(mintABI))
	if err != nil {
		return nil, fmt.Errorf("parse mint ABI: %w", err)
	}

	return &Preparer{
		contract: cfg.Contract,
		nonces:   cfg.Nonces,
		parsed:   parsed,
		logger:   cfg.Logger,
	}, nil
}

// Prepare assembles the settlement call for a winning bid. The bid deadline
// is re-checked against preparation time, not receipt time, because on-chain
// inclusion can lag; the taker nonce is re-read from the contract, bypassing
// the cache. A failure here leaves the session Matched but unsettled, which
// is a recoverable operational condition: the auction's job of agreeing on
// who won is already complete.
func (p *Preparer) Prepare(ctx context.Context, auctionID string, intent *auction.MakerIntent, bid *auction.TakerBid) (*Prepared, error) {
	if !intent.Attested() {
		PrepareFailuresTotal.WithLabelValues("unsigned").Inc()
		return nil, ErrUnsignedIntent
	}

	now := time.Now()
	if bid.Expired(now) {
		PrepareFailuresTotal.WithLabelValues("deadline").Inc()
		return nil, fmt.Errorf("%w: deadline %s, now %s",
			ErrBidDeadlinePassed, bid.Deadline.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	}

	current, err := p.nonces.Fresh(ctx, bid.Taker)
	if err != nil {
		PrepareFailuresTotal.WithLabelValues("nonce_lookup").Inc()
		return nil, fmt.Errorf("re-check taker nonce: %w", err)
	}
	if current != bid.Nonce {
		PrepareFailuresTotal.WithLabelValues("stale_nonce").Inc()
		return nil, fmt.Errorf("%w: taker nonce %d, contract %d", auction.ErrStaleNonce, bid.Nonce, current)
	}

	request := MintRequest{
		Maker:             intent.Maker,
		MakerWager:        new(big.Int).Set(intent.Wager),
		Taker:             bid.Taker,
		TakerWager:        new(big.Int).Set(bid.Wager),
		Resolver:          intent.Resolver,
		PredictedOutcomes: codec.EncodeLegs(intent.Legs),
		MakerNonce:        new(big.Int).SetUint64(intent.Nonce),
		TakerNonce:        new(big.Int).SetUint64(bid.Nonce),
		TakerDeadline:     big.NewInt(bid.Deadline.Unix()),
		MakerSignature:    intent.Signature,
		TakerSignature:    bid.Signature,
		ReferenceCode:     crypto.Keccak256Hash([]byte(auctionID)),
	}

	calldata, err := p.parsed.Pack("mint", request)
	if err != nil {
		PrepareFailuresTotal.WithLabelValues("encoding").Inc()
		return nil, fmt.Errorf("pack mint calldata: %w", err)
	}

	PreparesTotal.Inc()

	p.logger.Info("settlement-prepared",
		zap.String("auction-id", auctionID),
		zap.String("maker", intent.Maker.Hex()),
		zap.String("taker", bid.Taker.Hex()),
		zap.String("taker-wager", bid.Wager.String()),
		zap.Int("calldata-bytes", len(calldata)))

	return &Prepared{
		AuctionID: auctionID,
		To:        p.contract,
		Request:   request,
		Calldata:  calldata,
	}, nil
}
