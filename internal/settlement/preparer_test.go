package settlement_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/settlement"
	"github.com/parlaymkt/auction-relayer/internal/testutil"
)

func newPreparer(t *testing.T, nonces settlement.NonceSource) *settlement.Preparer {
	t.Helper()

	prep, err := settlement.New(&settlement.Config{
		Contract: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Nonces:   nonces,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return prep
}

func matchedPair(t *testing.T) (*auction.MakerIntent, *auction.TakerBid) {
	t.Helper()

	intent := testutil.SignedIntent(t)
	deadline := time.Now().Add(time.Minute).Truncate(time.Second)
	bid := testutil.SignedBid(t, intent, 300_000000, deadline)
	return intent, bid
}

func TestPrepare(t *testing.T) {
	intent, bid := matchedPair(t)
	nonces := &testutil.MockNonceSource{Nonce: bid.Nonce}
	prep := newPreparer(t, nonces)

	prepared, err := prep.Prepare(context.Background(), "auc-1", intent, bid)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if len(prepared.Calldata) == 0 {
		t.Error("calldata is empty")
	}
	if prepared.To != common.HexToAddress("0x00000000000000000000000000000000000000aa") {
		t.Errorf("target = %s, want the settlement contract", prepared.To.Hex())
	}
	if nonces.Calls != 1 {
		t.Errorf("nonce re-checks = %d, want 1", nonces.Calls)
	}

	req := prepared.Request
	if req.Maker != intent.Maker || req.Taker != bid.Taker {
		t.Error("request parties do not match the matched pair")
	}
	if req.MakerWager.Cmp(intent.Wager) != 0 || req.TakerWager.Cmp(bid.Wager) != 0 {
		t.Error("request wagers do not match the matched pair")
	}
	if !bytes.Equal(req.MakerSignature, intent.Signature) || !bytes.Equal(req.TakerSignature, bid.Signature) {
		t.Error("request signatures do not match the matched pair")
	}
	if req.ReferenceCode != crypto.Keccak256Hash([]byte("auc-1")) {
		t.Error("reference code is not the keccak of the auction id")
	}
}

func TestPrepare_ReferenceCodeDistinguishesAuctions(t *testing.T) {
	intent, bid := matchedPair(t)
	prep := newPreparer(t, &testutil.MockNonceSource{Nonce: bid.Nonce})
	ctx := context.Background()

	a, err := prep.Prepare(ctx, "auc-a", intent, bid)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	b, err := prep.Prepare(ctx, "auc-b", intent, bid)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if a.Request.ReferenceCode == b.Request.ReferenceCode {
		t.Error("different auctions produced the same reference code")
	}
}

func TestPrepare_RejectsUnsignedIntent(t *testing.T) {
	intent := testutil.UnsignedIntent(t)
	deadline := time.Now().Add(time.Minute)
	bid := testutil.UnsignedBid(t, 300_000000, deadline)
	prep := newPreparer(t, &testutil.MockNonceSource{Nonce: bid.Nonce})

	_, err := prep.Prepare(context.Background(), "auc-1", intent, bid)
	if !errors.Is(err, settlement.ErrUnsignedIntent) {
		t.Errorf("Prepare() error = %v, want ErrUnsignedIntent", err)
	}
}

func TestPrepare_RejectsLapsedBidDeadline(t *testing.T) {
	intent := testutil.SignedIntent(t)
	bid := testutil.SignedBid(t, intent, 300_000000, time.Now().Add(-time.Second))
	prep := newPreparer(t, &testutil.MockNonceSource{Nonce: bid.Nonce})

	_, err := prep.Prepare(context.Background(), "auc-1", intent, bid)
	if !errors.Is(err, settlement.ErrBidDeadlinePassed) {
		t.Errorf("Prepare() error = %v, want ErrBidDeadlinePassed", err)
	}
}

func TestPrepare_RejectsStaleTakerNonce(t *testing.T) {
	intent, bid := matchedPair(t)
	prep := newPreparer(t, &testutil.MockNonceSource{Nonce: bid.Nonce + 1})

	_, err := prep.Prepare(context.Background(), "auc-1", intent, bid)
	if !errors.Is(err, auction.ErrStaleNonce) {
		t.Errorf("Prepare() error = %v, want ErrStaleNonce", err)
	}
}

func TestPrepare_PropagatesNonceLookupFailure(t *testing.T) {
	intent, bid := matchedPair(t)
	lookupErr := errors.New("rpc unavailable")
	prep := newPreparer(t, &testutil.MockNonceSource{Err: lookupErr})

	_, err := prep.Prepare(context.Background(), "auc-1", intent, bid)
	if !errors.Is(err, lookupErr) {
		t.Errorf("Prepare() error = %v, want the lookup failure", err)
	}
}
