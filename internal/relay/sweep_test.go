package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/settlement"
	"github.com/parlaymkt/auction-relayer/internal/testutil"
	"github.com/parlaymkt/auction-relayer/pkg/types"
)

func newPreparer(t *testing.T, nonces settlement.NonceSource) *settlement.Preparer {
	t.Helper()

	prep, err := settlement.New(&settlement.Config{
		Contract: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Nonces:   nonces,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("settlement.New() error = %v", err)
	}
	return prep
}

func TestSweep_ExpiresWithoutBids(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	watcher := newTestConn(h, "conn-1")

	now := time.Now()
	sess := auction.NewSession("auc-1", *testutil.UnsignedIntent(t), "conn-1", now, time.Second)
	sess.Subscribe(watcher.id)
	h.store.Put(sess)

	h.sweep(now.Add(2 * time.Second))

	if sess.State() != auction.StateExpired {
		t.Fatalf("state = %s, want expired", sess.State())
	}

	env := recv(t, watcher)
	if env.Type != types.MsgBids {
		t.Fatalf("broadcast type = %q, want %q", env.Type, types.MsgBids)
	}
	var bids types.BidsPayload
	if err := json.Unmarshal(env.Payload, &bids); err != nil {
		t.Fatalf("unmarshal bids: %v", err)
	}
	if bids.State != "expired" {
		t.Errorf("broadcast state = %q, want expired", bids.State)
	}
}

func TestSweep_MatchesBestBid(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)
	watcher := newTestConn(h, "conn-1")

	now := time.Now()
	sess := auction.NewSession("auc-1", *testutil.UnsignedIntent(t), "conn-1", now, time.Second)
	sess.Subscribe(watcher.id)
	h.store.Put(sess)

	low := testutil.UnsignedBid(t, 100, now.Add(time.Hour))
	low.Taker = common.BytesToAddress([]byte{0x01})
	high := testutil.UnsignedBid(t, 300, now.Add(time.Hour))
	high.Taker = common.BytesToAddress([]byte{0x02})

	if _, err := sess.AcceptBid(*low); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if _, err := sess.AcceptBid(*high); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	h.sweep(now.Add(2 * time.Second))

	if sess.State() != auction.StateMatched {
		t.Fatalf("state = %s, want matched", sess.State())
	}
	winner, ok := sess.Winner()
	if !ok {
		t.Fatal("no winner recorded")
	}
	if winner.Taker != high.Taker {
		t.Errorf("winner = %s, want the higher bid", winner.Taker.Hex())
	}

	env := recv(t, watcher)
	if env.Type != types.MsgBids {
		t.Fatalf("broadcast type = %q, want %q", env.Type, types.MsgBids)
	}
	var bids types.BidsPayload
	if err := json.Unmarshal(env.Payload, &bids); err != nil {
		t.Fatalf("unmarshal bids: %v", err)
	}
	if bids.State != "matched" {
		t.Errorf("broadcast state = %q, want matched", bids.State)
	}
}

func TestSweep_SkipsSettlementForUnsignedMatch(t *testing.T) {
	h, audit := newTestHub(t, nil, nil)
	h.preparer = newPreparer(t, &testutil.MockNonceSource{Nonce: 9})

	now := time.Now()
	sess := auction.NewSession("auc-1", *testutil.UnsignedIntent(t), "conn-1", now, time.Second)
	h.store.Put(sess)

	if _, err := sess.AcceptBid(*testutil.UnsignedBid(t, 300, now.Add(time.Hour))); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	h.sweep(now.Add(2 * time.Second))

	if sess.State() != auction.StateMatched {
		t.Fatalf("state = %s, want matched", sess.State())
	}
	if audit.MatchCount() != 0 {
		t.Errorf("match records = %d, want 0 for an unsigned pair", audit.MatchCount())
	}
}

func TestSweep_PreparesSettlementForAttestedMatch(t *testing.T) {
	h, audit := newTestHub(t, nil, nil)

	intent := testutil.SignedIntent(t)
	now := time.Now()
	deadline := now.Add(time.Hour).Truncate(time.Second)
	bid := testutil.SignedBid(t, intent, 300_000000, deadline)

	h.preparer = newPreparer(t, &testutil.MockNonceSource{Nonce: bid.Nonce})

	sess := auction.NewSession("auc-1", *intent, "conn-1", now, time.Second)
	h.store.Put(sess)
	if _, err := sess.AcceptBid(*bid); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	h.sweep(now.Add(2 * time.Second))

	if sess.State() != auction.StateMatched {
		t.Fatalf("state = %s, want matched", sess.State())
	}
	if audit.MatchCount() != 1 {
		t.Fatalf("match records = %d, want 1", audit.MatchCount())
	}

	rec := audit.Matches[0]
	if rec.AuctionID != "auc-1" {
		t.Errorf("record auction id = %q, want auc-1", rec.AuctionID)
	}
	if len(rec.Calldata) == 0 {
		t.Error("record calldata is empty")
	}
	if rec.ReferenceCode == "" {
		t.Error("record reference code is empty")
	}
}

func TestSweep_PrepareFailureLeavesSessionMatched(t *testing.T) {
	h, audit := newTestHub(t, nil, nil)
	h.preparer = newPreparer(t, &testutil.MockNonceSource{Err: errors.New("rpc down")})

	intent := testutil.SignedIntent(t)
	now := time.Now()
	bid := testutil.SignedBid(t, intent, 300_000000, now.Add(time.Hour).Truncate(time.Second))

	sess := auction.NewSession("auc-1", *intent, "conn-1", now, time.Second)
	h.store.Put(sess)
	if _, err := sess.AcceptBid(*bid); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	h.sweep(now.Add(2 * time.Second))

	// The auction's job of agreeing on who won is done; settlement is
	// recoverable from the audit trail.
	if sess.State() != auction.StateMatched {
		t.Errorf("state = %s, want matched", sess.State())
	}
	if audit.MatchCount() != 0 {
		t.Errorf("match records = %d, want 0 after a prepare failure", audit.MatchCount())
	}
}

func TestSweep_EvictsTerminalPastRetention(t *testing.T) {
	h, _ := newTestHub(t, func(c *Config) { c.Retention = time.Minute }, nil)

	now := time.Now()
	sess := auction.NewSession("auc-1", *testutil.UnsignedIntent(t), "conn-1", now.Add(-time.Hour), time.Second)
	if !sess.ExpireIfDue(now.Add(-30 * time.Minute)) {
		t.Fatal("ExpireIfDue() should transition")
	}
	h.store.Put(sess)

	h.sweep(now)

	if _, ok := h.store.Get("auc-1"); ok {
		t.Error("terminal session past retention should be evicted")
	}
}

func TestSweep_IdempotentAcrossPasses(t *testing.T) {
	h, _ := newTestHub(t, nil, nil)

	now := time.Now()
	sess := auction.NewSession("auc-1", *testutil.UnsignedIntent(t), "conn-1", now, time.Second)
	h.store.Put(sess)
	if _, err := sess.AcceptBid(*testutil.UnsignedBid(t, 300, now.Add(time.Hour))); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	h.sweep(now.Add(2 * time.Second))
	first, _ := sess.Winner()

	h.sweep(now.Add(3 * time.Second))
	second, _ := sess.Winner()

	if first == nil || second == nil || first.Taker != second.Taker {
		t.Error("repeated sweeps changed the winner")
	}
}
