package testutil

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/codec"
)

// Deterministic throwaway keys so fixture signatures are stable across runs.
const (
	MakerKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	TakerKeyHex = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

// MakerKey returns the fixture maker's private key.
func MakerKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	return mustKey(t, MakerKeyHex)
}

// TakerKey returns the fixture taker's private key.
func TakerKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	return mustKey(t, TakerKeyHex)
}

func mustKey(t *testing.T, hexKey string) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("parse fixture key: %v", err)
	}
	return key
}

// AddressOf returns the address controlled by a fixture key.
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// NewCodec returns a codec pinned to the fixture signing context.
func NewCodec() *codec.Codec {
	return codec.New(codec.Config{
		Domain:            "relay.test",
		URI:               "https://relay.test",
		ChainID:           big.NewInt(8453),
		VerifyingContract: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	})
}

// Legs returns a two-leg parlay fixture.
func Legs() []auction.Leg {
	return []auction.Leg{
		{MarketID: [32]byte{0xaa, 0x01}, Outcome: true},
		{MarketID: [32]byte{0xbb, 0x02}, Outcome: false},
	}
}

// UnsignedIntent returns an intent for the fixture maker without an
// attestation.
func UnsignedIntent(t *testing.T) *auction.MakerIntent {
	t.Helper()

	return &auction.MakerIntent{
		Maker:    AddressOf(MakerKey(t)),
		Wager:    big.NewInt(250_000000),
		Resolver: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Legs:     Legs(),
		Nonce:    3,
		Kind:     auction.IntentUnattested,
	}
}

// SignedIntent returns an intent for the fixture maker carrying a valid
// attestation from the fixture codec.
func SignedIntent(t *testing.T) *auction.MakerIntent {
	t.Helper()

	intent := UnsignedIntent(t)
	intent.Kind = auction.IntentAttested
	intent.SignedAt = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	sig, err := NewCodec().SignIntent(intent, MakerKey(t))
	if err != nil {
		t.Fatalf("sign fixture intent: %v", err)
	}
	intent.Signature = sig

	return intent
}

// UnsignedBid returns a bid from the fixture taker without a signature.
func UnsignedBid(t *testing.T, wager int64, deadline time.Time) *auction.TakerBid {
	t.Helper()

	return &auction.TakerBid{
		Taker:      AddressOf(TakerKey(t)),
		Wager:      big.NewInt(wager),
		Deadline:   deadline,
		Nonce:      9,
		ReceivedAt: time.Now(),
	}
}

// SignedBid returns a bid from the fixture taker carrying a valid EIP-712
// signature over the given intent's terms.
func SignedBid(t *testing.T, intent *auction.MakerIntent, wager int64, deadline time.Time) *auction.TakerBid {
	t.Helper()

	bid := UnsignedBid(t, wager, deadline)

	sig, err := NewCodec().SignBid(intent, bid, TakerKey(t))
	if err != nil {
		t.Fatalf("sign fixture bid: %v", err)
	}
	bid.Signature = sig

	return bid
}
