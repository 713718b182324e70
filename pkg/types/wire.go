package types

import (
	json "github.com/goccy/go-json"
)

// Message types exchanged over the relayer connection.
const (
	MsgAuctionStart = "auction.start"
	MsgBidSubmit    = "bid.submit"
	MsgSubscribe    = "auction.subscribe"
	MsgUnsubscribe  = "auction.unsubscribe"
	MsgCancel       = "auction.cancel"
	MsgPing         = "ping"

	MsgAck     = "auction.ack"
	MsgStarted = "auction.started"
	MsgBids    = "auction.bids"
	MsgError   = "auction.error"
	MsgPong    = "pong"
)

// Envelope is the outer shape of every protocol message. Ping and pong carry
// no payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartPayload opens an auction. The field names follow the shared
// maker/taker payload shape inherited from the settlement contract: "taker"
// is the starting signer's own address and "takerNonce" is that signer's
// nonce at signing time. In an auction.start both refer to the maker.
//
// PredictedOutcomes is the opaque hex-encoded leg blob: 33 bytes per leg,
// 32-byte market id followed by one outcome byte. Wager is a decimal
// base-unit string. Signature and SignedAt are absent on the unsigned
// degraded path.
type StartPayload struct {
	Taker             string `json:"taker"`
	Wager             string `json:"wager"`
	Resolver          string `json:"resolver"`
	PredictedOutcomes string `json:"predictedOutcomes"`
	TakerNonce        uint64 `json:"takerNonce"`
	Signature         string `json:"signature,omitempty"`
	SignedAt          string `json:"signedAt,omitempty"`
}

// BidPayload submits a counter-offer against an open auction. Here the
// shared payload shape flips: the "maker*" fields carry the bidder's wager,
// deadline, nonce and signature. Roles are resolved by the message's place
// in the protocol flow, never by field name.
type BidPayload struct {
	AuctionID      string `json:"auctionId"`
	Maker          string `json:"maker"`
	MakerWager     string `json:"makerWager"`
	MakerDeadline  int64  `json:"makerDeadline"`
	MakerNonce     uint64 `json:"makerNonce"`
	MakerSignature string `json:"makerSignature"`
}

// SubscribePayload addresses auction.subscribe, auction.unsubscribe and
// auction.cancel.
type SubscribePayload struct {
	AuctionID string `json:"auctionId"`
}

// AckPayload is the reply to the connection that started an auction.
type AckPayload struct {
	AuctionID string `json:"auctionId"`
}

// StartedPayload is broadcast to all connections when an auction opens.
type StartedPayload struct {
	AuctionID string `json:"auctionId"`
	StartPayload
}

// BidView is the broadcast view of one accepted bid.
type BidView struct {
	Taker      string `json:"taker"`
	Wager      string `json:"wager"`
	Deadline   int64  `json:"deadline"`
	Nonce      uint64 `json:"nonce"`
	ReceivedAt int64  `json:"receivedAtMs"`
}

// BidsPayload is broadcast to an auction's subscribers whenever its bid list
// or state changes. Terminal transitions ride on the state field.
type BidsPayload struct {
	AuctionID string    `json:"auctionId"`
	State     string    `json:"state"`
	Bids      []BidView `json:"bids"`
}

// ErrorPayload is sent to the originating connection on any rejection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
