package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
	"github.com/parlaymkt/auction-relayer/internal/nonce"
	"github.com/parlaymkt/auction-relayer/internal/storage"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

const validateTimeout = 5 * time.Second

// dispatch routes one inbound message. Every rejection is resolved here and
// surfaced to the originating connection only; nothing downstream sees a
// partially validated message.
func (h *Hub) dispatch(c *conn, raw []byte) {
	var env types.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.sendError(types.CodeEncodingError, "malformed JSON envelope")
		return
	}

	switch env.Type {
	case types.MsgPing:
		if data, err := marshalEnvelope(types.MsgPong, nil); err == nil {
			c.enqueue(data)
		}
	case types.MsgAuctionStart:
		h.handleStart(c, env.Payload)
	case types.MsgBidSubmit:
		h.handleBid(c, env.Payload)
	case types.MsgSubscribe:
		h.handleSubscribe(c, env.Payload, true)
	case types.MsgUnsubscribe:
		h.handleSubscribe(c, env.Payload, false)
	case types.MsgCancel:
		h.handleCancel(c, env.Payload)
	default:
		c.sendError(types.CodeUnknownType, fmt.Sprintf("unknown message type %q", env.Type))
	}
}

// handleStart validates an auction.start end to end, then commits: a session
// only exists once every check has passed.
func (h *Hub) handleStart(c *conn, raw json.RawMessage) {
	var p types.StartPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(types.CodeEncodingError, "malformed auction.start payload")
		return
	}

	intent, err := h.intentFromWire(&p)
	if err != nil {
		c.sendError(codeFor(err), err.Error())
		return
	}

	if intent.Attested() {
		if err := h.codec.VerifyIntent(intent); err != nil {
			h.logger.Warn("start-signature-rejected",
				zap.String("conn-id", c.id),
				zap.String("claimed-maker", intent.Maker.Hex()))
			c.sendError(codeFor(err), err.Error())
			return
		}

		// No oracle means no chain access at all (degraded mode); the
		// nonce claim is taken at face value and settlement is skipped
		// downstream.
		if h.oracle != nil {
			ctx, cancel := context.WithTimeout(h.ctx, validateTimeout)
			current, err := h.oracle.Current(ctx, intent.Maker)
			cancel()
			if err != nil {
				c.sendError(types.CodeNonceLookupFailed, "nonce lookup failed, retry with backoff")
				return
			}
			if current != intent.Nonce {
				c.sendError(types.CodeStaleNonce,
					fmt.Sprintf("maker nonce %d does not match contract nonce %d; refresh and resubmit", intent.Nonce, current))
				return
			}
		}
	} else if !h.cfg.AllowUnsigned {
		c.sendError(types.CodeInvalidSignature, "unsigned auction.start not accepted")
		return
	}

	sess := auction.NewSession(uuid.NewString(), *intent, c.id, time.Now(), h.cfg.AuctionTTL)
	h.store.Put(sess)

	h.logger.Info("auction-started",
		zap.String("auction-id", sess.ID),
		zap.String("maker", intent.Maker.Hex()),
		zap.String("wager", intent.Wager.String()),
		zap.Int("legs", len(intent.Legs)),
		zap.Bool("attested", intent.Attested()))

	if ack, err := marshalEnvelope(types.MsgAck, types.AckPayload{AuctionID: sess.ID}); err == nil {
		c.enqueue(ack)
	}

	if started, err := marshalEnvelope(types.MsgStarted, types.StartedPayload{
		AuctionID:    sess.ID,
		StartPayload: p,
	}); err == nil {
		h.broadcastAll(started)
	}

	h.recordAuction(sess)
}

// handleBid validates a bid.submit against its session, commits it, and
// broadcasts the updated bid list to the session's subscribers.
func (h *Hub) handleBid(c *conn, raw json.RawMessage) {
	var p types.BidPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(types.CodeEncodingError, "malformed bid.submit payload")
		return
	}

	sess, ok := h.store.Get(p.AuctionID)
	if !ok {
		c.sendError(types.CodeNotFound, fmt.Sprintf("unknown auction %q", p.AuctionID))
		return
	}

	bid, err := bidFromWire(&p)
	if err != nil {
		c.sendError(codeFor(err), err.Error())
		return
	}

	if len(bid.Signature) > 0 {
		if err := h.codec.VerifyBid(&sess.Intent, bid); err != nil {
			h.logger.Warn("bid-signature-rejected",
				zap.String("conn-id", c.id),
				zap.String("auction-id", sess.ID),
				zap.String("claimed-taker", bid.Taker.Hex()))
			c.sendError(codeFor(err), err.Error())
			return
		}
	} else if !h.cfg.AllowUnsigned {
		c.sendError(types.CodeInvalidSignature, "unsigned bid.submit not accepted")
		return
	}

	if _, err := sess.AcceptBid(*bid); err != nil {
		if errors.Is(err, auction.ErrClosed) {
			c.sendError(types.CodeAuctionClosed,
				fmt.Sprintf("auction %s is %s", sess.ID, sess.State()))
			return
		}
		c.sendError(codeFor(err), err.Error())
		return
	}

	h.logger.Info("bid-accepted",
		zap.String("auction-id", sess.ID),
		zap.String("taker", bid.Taker.Hex()),
		zap.String("wager", bid.Wager.String()))

	h.broadcastBids(sess)
	h.recordBid(sess.ID, bid)
}

func (h *Hub) handleSubscribe(c *conn, raw json.RawMessage, subscribe bool) {
	var p types.SubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(types.CodeEncodingError, "malformed subscription payload")
		return
	}

	sess, ok := h.store.Get(p.AuctionID)
	if !ok {
		c.sendError(types.CodeNotFound, fmt.Sprintf("unknown auction %q", p.AuctionID))
		return
	}

	if !subscribe {
		sess.Unsubscribe(c.id)
		return
	}

	sess.Subscribe(c.id)

	// New subscribers get the current bid list immediately.
	state, bids := sess.Snapshot()
	if data, err := marshalEnvelope(types.MsgBids, types.BidsPayload{
		AuctionID: sess.ID,
		State:     state.String(),
		Bids:      bidViews(bids),
	}); err == nil {
		c.enqueue(data)
	}
}

func (h *Hub) handleCancel(c *conn, raw json.RawMessage) {
	var p types.SubscribePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.sendError(types.CodeEncodingError, "malformed cancel payload")
		return
	}

	sess, ok := h.store.Get(p.AuctionID)
	if !ok {
		c.sendError(types.CodeNotFound, fmt.Sprintf("unknown auction %q", p.AuctionID))
		return
	}

	if err := sess.Cancel(c.id, time.Now()); err != nil {
		if errors.Is(err, auction.ErrClosed) {
			c.sendError(types.CodeAuctionClosed,
				fmt.Sprintf("auction %s is %s", sess.ID, sess.State()))
			return
		}
		c.sendError(codeFor(err), err.Error())
		return
	}

	h.logger.Info("auction-cancelled", zap.String("auction-id", sess.ID))
	h.broadcastBids(sess)
}

// intentFromWire translates the shared taker-shaped start payload into the
// role-correct maker intent.
func (h *Hub) intentFromWire(p *types.StartPayload) (*auction.MakerIntent, error) {
	if !common.IsHexAddress(p.Taker) {
		return nil, fmt.Errorf("%w: invalid maker address %q", codec.ErrEncoding, p.Taker)
	}
	if !common.IsHexAddress(p.Resolver) {
		return nil, fmt.Errorf("%w: invalid resolver address %q", codec.ErrEncoding, p.Resolver)
	}

	wager, ok := new(big.Int).SetString(p.Wager, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid wager %q", codec.ErrEncoding, p.Wager)
	}
	if wager.Sign() <= 0 {
		return nil, auction.ErrInvalidWager
	}

	blob, err := hexutil.Decode(p.PredictedOutcomes)
	if err != nil {
		return nil, fmt.Errorf("%w: predicted outcomes: %v", codec.ErrEncoding, err)
	}
	legs, err := codec.DecodeLegs(blob)
	if err != nil {
		return nil, err
	}
	if len(legs) < h.cfg.MinLegs {
		return nil, fmt.Errorf("%w: %d legs, policy minimum %d", codec.ErrEncoding, len(legs), h.cfg.MinLegs)
	}

	intent := &auction.MakerIntent{
		Maker:    common.HexToAddress(p.Taker),
		Wager:    wager,
		Resolver: common.HexToAddress(p.Resolver),
		Legs:     legs,
		Nonce:    p.TakerNonce,
		Kind:     auction.IntentUnattested,
	}

	if p.Signature != "" {
		sig, err := hexutil.Decode(p.Signature)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %v", codec.ErrEncoding, err)
		}
		signedAt, err := time.Parse(time.RFC3339, p.SignedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: signedAt: %v", codec.ErrEncoding, err)
		}

		intent.Kind = auction.IntentAttested
		intent.Signature = sig
		intent.SignedAt = signedAt
	}

	return intent, nil
}

// bidFromWire translates the maker-shaped bid payload into the role-correct
// taker bid.
func bidFromWire(p *types.BidPayload) (*auction.TakerBid, error) {
	if !common.IsHexAddress(p.Maker) {
		return nil, fmt.Errorf("%w: invalid bidder address %q", codec.ErrEncoding, p.Maker)
	}

	wager, ok := new(big.Int).SetString(p.MakerWager, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid bid wager %q", codec.ErrEncoding, p.MakerWager)
	}
	if wager.Sign() <= 0 {
		return nil, auction.ErrInvalidWager
	}

	bid := &auction.TakerBid{
		Taker:      common.HexToAddress(p.Maker),
		Wager:      wager,
		Deadline:   time.Unix(p.MakerDeadline, 0),
		Nonce:      p.MakerNonce,
		ReceivedAt: time.Now(),
	}

	if p.MakerSignature != "" {
		sig, err := hexutil.Decode(p.MakerSignature)
		if err != nil {
			return nil, fmt.Errorf("%w: signature: %v", codec.ErrEncoding, err)
		}
		bid.Signature = sig
	}

	return bid, nil
}

// codeFor maps domain errors to protocol rejection codes.
func codeFor(err error) string {
	switch {
	case errors.Is(err, auction.ErrInvalidSignature):
		return types.CodeInvalidSignature
	case errors.Is(err, auction.ErrStaleNonce):
		return types.CodeStaleNonce
	case errors.Is(err, nonce.ErrLookup):
		return types.CodeNonceLookupFailed
	case errors.Is(err, auction.ErrClosed):
		return types.CodeAuctionClosed
	case errors.Is(err, auction.ErrNotFound):
		return types.CodeNotFound
	case errors.Is(err, auction.ErrNotStarter):
		return types.CodeUnauthorized
	default:
		// Encoding and wager shape problems, and anything unclassified.
		return types.CodeEncodingError
	}
}

func (h *Hub) recordAuction(sess *auction.Session) {
	rec := &storage.AuctionRecord{
		AuctionID: sess.ID,
		Maker:     sess.Intent.Maker.Hex(),
		Wager:     sess.Intent.Wager.String(),
		Resolver:  sess.Intent.Resolver.Hex(),
		LegCount:  len(sess.Intent.Legs),
		Nonce:     sess.Intent.Nonce,
		Attested:  sess.Intent.Attested(),
		CreatedAt: sess.CreatedAt,
	}

	ctx, cancel := context.WithTimeout(h.ctx, validateTimeout)
	defer cancel()
	if err := h.audit.StoreAuction(ctx, rec); err != nil {
		h.logger.Warn("audit-auction-failed", zap.Error(err), zap.String("auction-id", sess.ID))
	}
}

func (h *Hub) recordBid(auctionID string, bid *auction.TakerBid) {
	rec := &storage.BidRecord{
		AuctionID:  auctionID,
		Taker:      bid.Taker.Hex(),
		Wager:      bid.Wager.String(),
		Deadline:   bid.Deadline,
		Nonce:      bid.Nonce,
		ReceivedAt: bid.ReceivedAt,
	}

	ctx, cancel := context.WithTimeout(h.ctx, validateTimeout)
	defer cancel()
	if err := h.audit.StoreBid(ctx, rec); err != nil {
		h.logger.Warn("audit-bid-failed", zap.Error(err), zap.String("auction-id", auctionID))
	}
}
