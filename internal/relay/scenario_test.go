package relay

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	json "github.com/goccy/go-json"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/testutil"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

// Full signed flow: two competing bids, deadline match, late bid rejected.
func TestScenario_CompetingBidsThenLateBid(t *testing.T) {
	caller := &testutil.MockContractCaller{Nonce: 5}
	h, audit := newTestHub(t, nil, newOracle(t, caller))
	maker := newTestConn(h, "conn-maker")
	takerA := newTestConn(h, "conn-taker-a")
	takerB := newTestConn(h, "conn-taker-b")

	cdc := testutil.NewCodec()
	makerKey := testutil.MakerKey(t)

	wager, _ := new(big.Int).SetString("1000000000000000000", 10)
	intent := &auction.MakerIntent{
		Maker:    testutil.AddressOf(makerKey),
		Wager:    wager,
		Resolver: testutil.UnsignedIntent(t).Resolver,
		Legs:     testutil.Legs()[:1],
		Nonce:    5,
		Kind:     auction.IntentAttested,
		SignedAt: time.Now().UTC().Truncate(time.Second),
	}
	sig, err := cdc.SignIntent(intent, makerKey)
	if err != nil {
		t.Fatalf("SignIntent() error = %v", err)
	}
	intent.Signature = sig

	id := openAuction(t, h, maker, intent)
	drain(takerA)
	drain(takerB)

	send(t, h, maker, types.MsgSubscribe, types.SubscribePayload{AuctionID: id})
	drain(maker)

	now := time.Now()
	deadline := now.Add(time.Hour).Truncate(time.Second)

	keyA := testutil.TakerKey(t)
	keyB, err := crypto.HexToECDSA("289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032")
	if err != nil {
		t.Fatalf("parse key: %v", err)
	}

	lowWager, _ := new(big.Int).SetString("900000000000000000", 10)
	low := &auction.TakerBid{
		Taker:    testutil.AddressOf(keyA),
		Wager:    lowWager,
		Deadline: deadline,
		Nonce:    1,
	}
	low.Signature, err = cdc.SignBid(intent, low, keyA)
	if err != nil {
		t.Fatalf("SignBid() error = %v", err)
	}

	highWager, _ := new(big.Int).SetString("1100000000000000000", 10)
	high := &auction.TakerBid{
		Taker:    testutil.AddressOf(keyB),
		Wager:    highWager,
		Deadline: deadline,
		Nonce:    1,
	}
	high.Signature, err = cdc.SignBid(intent, high, keyB)
	if err != nil {
		t.Fatalf("SignBid() error = %v", err)
	}

	send(t, h, takerA, types.MsgBidSubmit, bidPayload(id, low))
	drain(maker)
	send(t, h, takerB, types.MsgBidSubmit, bidPayload(id, high))
	drain(maker)

	sess, _ := h.store.Get(id)
	h.sweep(sess.Deadline.Add(time.Second))

	winner, ok := sess.Winner()
	if !ok {
		t.Fatal("no winner after the deadline sweep")
	}
	if winner.Wager.Cmp(highWager) != 0 {
		t.Errorf("winning wager = %s, want the 1.1e18 bid", winner.Wager)
	}

	// Subscribers see the terminal matched state.
	env := recv(t, maker)
	var bids types.BidsPayload
	if err := json.Unmarshal(env.Payload, &bids); err != nil {
		t.Fatalf("unmarshal bids: %v", err)
	}
	if bids.State != "matched" {
		t.Errorf("broadcast state = %q, want matched", bids.State)
	}

	// A still-higher bid arriving after the match is rejected.
	lateWager, _ := new(big.Int).SetString("1200000000000000000", 10)
	late := &auction.TakerBid{
		Taker:    testutil.AddressOf(keyB),
		Wager:    lateWager,
		Deadline: deadline,
		Nonce:    2,
	}
	late.Signature, err = cdc.SignBid(intent, late, keyB)
	if err != nil {
		t.Fatalf("SignBid() error = %v", err)
	}
	send(t, h, takerB, types.MsgBidSubmit, bidPayload(id, late))

	p := recvError(t, takerB)
	if p.Code != types.CodeAuctionClosed {
		t.Errorf("late bid code = %q, want %q", p.Code, types.CodeAuctionClosed)
	}

	if len(audit.Bids) != 2 {
		t.Errorf("audit bids = %d, want 2", len(audit.Bids))
	}
}

// A bid that arrives already past its own deadline stays visible in the bid
// history but never wins; a lower, still-valid bid does.
func TestScenario_ExpiredBidVisibleButNotSelectable(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	maker := newTestConn(h, "conn-maker")
	bidder := newTestConn(h, "conn-bidder")

	id := openAuction(t, h, maker, testutil.UnsignedIntent(t))
	drain(bidder)

	send(t, h, maker, types.MsgSubscribe, types.SubscribePayload{AuctionID: id})
	drain(maker)

	now := time.Now()

	stale := testutil.UnsignedBid(t, 900, now.Add(-time.Minute))
	stale.Nonce = 1
	send(t, h, bidder, types.MsgBidSubmit, bidPayload(id, stale))
	drain(maker)

	fresh := testutil.UnsignedBid(t, 500, now.Add(time.Hour))
	fresh.Nonce = 2
	send(t, h, bidder, types.MsgBidSubmit, bidPayload(id, fresh))

	// Both bids appear in the broadcast history.
	env := recv(t, maker)
	var bids types.BidsPayload
	if err := json.Unmarshal(env.Payload, &bids); err != nil {
		t.Fatalf("unmarshal bids: %v", err)
	}
	if len(bids.Bids) != 2 {
		t.Fatalf("broadcast bids = %d, want 2", len(bids.Bids))
	}

	sess, _ := h.store.Get(id)
	h.sweep(sess.Deadline.Add(time.Second))

	winner, ok := sess.Winner()
	if !ok {
		t.Fatal("no winner after the deadline sweep")
	}
	if winner.Wager.Int64() != 500 {
		t.Errorf("winning wager = %s, want the lower still-valid 500", winner.Wager)
	}
}
